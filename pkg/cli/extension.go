package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"extblock/pkg/registry"
)

// maxSuggestDistance is the largest edit distance offered as a suggestion.
const maxSuggestDistance = 2

func init() {
	rootCmd.AddCommand(addCmd, deleteCmd, toggleCmd, checkCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <extension>",
	Short: "Add a custom extension",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.reg.AddCustom(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", rec.Extension)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <extension>",
	Aliases: []string{"rm"},
	Short:   "Delete a custom extension",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.reg.DeleteCustom(cmd.Context(), args[0]); err != nil {
			return withSuggestion(cmd.Context(), env.reg, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", registry.Normalize(args[0]))
		return nil
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <extension>",
	Short: "Switch a fixed extension on or off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.reg.ToggleFixed(cmd.Context(), args[0])
		if err != nil {
			return withSuggestion(cmd.Context(), env.reg, err)
		}
		state := "inactive"
		if rec.Active {
			state = "active"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", rec.Extension, state)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <extension>...",
	Short: "Report whether uploads with the given extensions are blocked",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		for _, arg := range args {
			blocked, err := env.reg.IsBlocked(cmd.Context(), arg)
			if err != nil {
				return err
			}
			verdict := "allowed"
			if blocked {
				verdict = "blocked"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", registry.Normalize(arg), verdict)
		}
		return nil
	},
}

// withSuggestion appends the closest stored extensions to a not-found error.
func withSuggestion(ctx context.Context, reg *registry.Registry, err error) error {
	var regErr *registry.Error
	if !errors.As(err, &regErr) || regErr.Code != registry.CodeExtensionNotFound {
		return err
	}
	listing, listErr := reg.List(ctx)
	if listErr != nil {
		return err
	}
	candidates := make([]string, 0, len(listing.Fixed)+len(listing.Custom))
	for _, rec := range listing.Fixed {
		candidates = append(candidates, rec.Extension)
	}
	for _, rec := range listing.Custom {
		candidates = append(candidates, rec.Extension)
	}
	if matches := suggest(regErr.Extension, candidates); len(matches) > 0 {
		return fmt.Errorf("%w (did you mean %q?)", err, matches[0])
	}
	return err
}

// suggest returns the candidates within maxSuggestDistance edits of target,
// closest first.
func suggest(target string, candidates []string) []string {
	type scored struct {
		ext  string
		dist int
	}
	var hits []scored
	for _, c := range candidates {
		if c == target {
			continue
		}
		if d := levenshtein.ComputeDistance(target, c); d <= maxSuggestDistance {
			hits = append(hits, scored{ext: c, dist: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].ext < hits[j].ext
	})
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ext)
	}
	return out
}
