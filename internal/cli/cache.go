package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshade/adcarbon/internal/config"
	"github.com/rshade/adcarbon/internal/engine/cache"
)

// openCacheCmdStore opens the configured result cache, failing when caching
// is disabled.
func openCacheCmdStore() (*cache.FileStore, error) {
	store, err := openResultCache(config.GetGlobalConfig())
	if err != nil {
		return nil, err
	}
	if !store.IsEnabled() {
		return nil, fmt.Errorf("%w: set cache.enabled to true", cache.ErrDisabled)
	}
	return store, nil
}

// NewCacheStatsCmd creates the cache stats command.
func NewCacheStatsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show result cache size and location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := outputFormat(output)
			if err != nil {
				return err
			}
			store, err := openCacheCmdStore()
			if err != nil {
				return err
			}
			st, err := store.Stats()
			if err != nil {
				return err
			}
			ttl := cache.FormatDuration(time.Duration(store.TTL()) * time.Second)
			if format == formatJSON {
				return renderJSON(cmd.OutOrStdout(), map[string]any{
					"directory":  store.Directory(),
					"entries":    st.Entries,
					"bytes":      st.Bytes,
					"ttlSeconds": store.TTL(),
				})
			}
			cmd.Printf("Directory: %s\n", store.Directory())
			cmd.Printf("Entries:   %d\n", st.Entries)
			cmd.Printf("Size:      %d bytes\n", st.Bytes)
			cmd.Printf("Expiry:    %s\n", ttl)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table or json")
	return cmd
}

// NewCacheClearCmd creates the cache clear command.
func NewCacheClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every persisted emission result",
		Long: `Deletes every persisted emission result. Activities are kept; their
emissions are recalculated the next time they are shown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCacheCmdStore()
			if err != nil {
				return err
			}
			if err = confirmOrAbort(cmd, yes, "Delete all cached emission results?"); err != nil {
				return err
			}
			if err = store.Clear(); err != nil {
				return err
			}
			cmd.Println("Cache cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// NewCacheCleanupCmd creates the cache cleanup command.
func NewCacheCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired emission results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCacheCmdStore()
			if err != nil {
				return err
			}
			removed, err := store.CleanupExpired()
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d expired entries\n", removed)
			return nil
		},
	}
}
