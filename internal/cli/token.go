package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudkit/internal/server"
)

func newTokenCmd(f *rootFlags) *cobra.Command {
	var (
		claims []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with jwt_secret",
		Long: "Issue an HS256 bearer token. Claims are key=value pairs; values that\n" +
			"parse as JSON keep their JSON type, others are strings.\n\n" +
			"Example:\n  crudkit token --claim owner=alice --ttl 1h",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := f.load(cmd)
			if err != nil {
				return err
			}
			parsed, err := parseClaims(claims)
			if err != nil {
				return exitError(exitUserError, "%w", err)
			}

			token, err := server.NewAuthenticator([]byte(e.cfg.JWTSecret)).Issue(parsed, ttl)
			if err != nil {
				return exitError(exitUserError, "issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&claims, "claim", nil, "claim as key=value (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	return cmd
}

// parseClaims turns key=value pairs into token claims.
func parseClaims(pairs []string) (map[string]any, error) {
	claims := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid claim %q (expected key=value)", p)
		}
		var v any
		if err := json.UnmarshalFromString(value, &v); err != nil {
			v = value
		}
		claims[key] = v
	}
	return claims, nil
}
