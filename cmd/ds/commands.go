package ds

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ValentinKolb/cloudstore/lib/datastore"
	"github.com/ValentinKolb/cloudstore/lib/paging"
	"github.com/ValentinKolb/cloudstore/lib/service"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the latest version of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dataStore()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			entry, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return out.printEntry(entry)
		},
	}
	getVersionCmd = &cobra.Command{
		Use:   "get-version [key] [version]",
		Short: "Reads a specific version of a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dataStore()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			entry, err := store.GetVersion(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return out.printEntry(entry)
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [json value]",
		Short: "Writes a new version of a key",
		Long:  `Writes a new version of a key. The value must be valid JSON, e.g. '{"level":3}' or '"text"'.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dataStore()
			if err != nil {
				return err
			}
			opts, err := setOptions(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			version, err := store.Set(ctx, args[0], []byte(args[1]), opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
	incrCmd = &cobra.Command{
		Use:   "incr [key] [delta]",
		Short: "Increments the integer stored at a key (default delta 1)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dataStore()
			if err != nil {
				return err
			}
			delta := int64(1)
			if len(args) == 2 {
				if delta, err = strconv.ParseInt(args[1], 10, 64); err != nil {
					return fmt.Errorf("delta must be an integer: %w", err)
				}
			}
			opts, err := setOptions(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			entry, err := store.Increment(ctx, args[0], delta, opts)
			if err != nil {
				return err
			}
			return out.printEntry(entry)
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [key]",
		Short: "Marks a key as deleted, its versions are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dataStore()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			entry, err := store.Remove(ctx, args[0])
			if err != nil {
				return err
			}
			return out.printEntry(entry)
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists the keys of a data store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := dataStore()
			if err != nil {
				return err
			}
			prefix, _ := cmd.Flags().GetString("prefix")
			pageSize, _ := cmd.Flags().GetInt("page-size")
			allScopes, _ := cmd.Flags().GetBool("all-scopes")
			pages, _ := cmd.Flags().GetInt("pages")

			cursor := store.ListKeys(service.ListKeysOptions{Prefix: prefix, PageSize: pageSize, AllScopes: allScopes})
			keys, err := collect(cmd, cursor, pages)
			if err != nil {
				return err
			}
			return out.printKeys(keys)
		},
	}
	versionsCmd = &cobra.Command{
		Use:   "versions [key]",
		Short: "Lists the versions of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := dataStore()
			if err != nil {
				return err
			}
			pageSize, _ := cmd.Flags().GetInt("page-size")
			pages, _ := cmd.Flags().GetInt("pages")
			desc, _ := cmd.Flags().GetBool("desc")
			since, _ := cmd.Flags().GetString("since")
			until, _ := cmd.Flags().GetString("until")

			now := time.Now()
			minDate, err := parseTime(since, now)
			if err != nil {
				return err
			}
			maxDate, err := parseTime(until, now)
			if err != nil {
				return err
			}

			opts := service.ListVersionsOptions{MinDate: minDate, MaxDate: maxDate, PageSize: pageSize}
			if desc {
				opts.Direction = datastore.SortDescending
			}

			versions, err := collect(cmd, store.ListVersions(args[0], opts), pages)
			if err != nil {
				return err
			}
			return out.printVersions(versions)
		},
	}
	storesCmd = &cobra.Command{
		Use:   "stores",
		Short: "Lists the data stores of the universe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			pageSize, _ := cmd.Flags().GetInt("page-size")
			pages, _ := cmd.Flags().GetInt("pages")

			cursor := svc.ListDataStores(datastore.StoreQuery{Prefix: prefix, PageSize: pageSize})
			stores, err := collect(cmd, cursor, pages)
			if err != nil {
				return err
			}
			return out.printStores(stores)
		},
	}
)

func init() {
	for _, cmd := range []*cobra.Command{setCmd, incrCmd} {
		cmd.Flags().Int64Slice("user-ids", nil, "IDs of the users associated with the new version")
		cmd.Flags().StringToString("metadata", nil, "Metadata of the new version (k1=v1,k2=v2)")
		cmd.Flags().Bool("exclusive", false, "Fail if the key already exists")
		cmd.Flags().String("match-version", "", "Fail unless the latest version of the key has this id")
	}

	for _, cmd := range []*cobra.Command{keysCmd, versionsCmd, storesCmd} {
		cmd.Flags().Int("page-size", datastore.DefaultPageSize, fmt.Sprintf("Items per page (max %d)", datastore.MaxPageSize))
		cmd.Flags().Int("pages", 0, "Maximum number of pages to fetch (0 fetches all)")
	}
	keysCmd.Flags().String("prefix", "", "Only list keys with this prefix")
	keysCmd.Flags().Bool("all-scopes", false, "List the keys of all scopes of the data store")
	storesCmd.Flags().String("prefix", "", "Only list data stores with this prefix")
	versionsCmd.Flags().Bool("desc", false, "List the newest version first")
	versionsCmd.Flags().String("since", "", "Only versions created at or after this time (RFC 3339 or relative, e.g. -24h)")
	versionsCmd.Flags().String("until", "", "Only versions created at or before this time (RFC 3339 or relative)")
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// setOptions reads the write options of set and incr
func setOptions(cmd *cobra.Command) (datastore.SetOptions, error) {
	userIDs, err := cmd.Flags().GetInt64Slice("user-ids")
	if err != nil {
		return datastore.SetOptions{}, err
	}
	metadata, err := cmd.Flags().GetStringToString("metadata")
	if err != nil {
		return datastore.SetOptions{}, err
	}
	exclusive, _ := cmd.Flags().GetBool("exclusive")
	matchVersion, _ := cmd.Flags().GetString("match-version")

	if len(metadata) == 0 {
		metadata = nil
	}
	return datastore.SetOptions{
		UserIDs:         userIDs,
		Metadata:        metadata,
		ExclusiveCreate: exclusive,
		MatchVersion:    matchVersion,
	}, nil
}

// collect reads up to maxPages pages (0 reads all) of a cursor, each page with its own timeout
func collect[T any](cmd *cobra.Command, cursor *paging.Cursor[T], maxPages int) ([]T, error) {
	ctx, cancel := requestContext(cmd)
	page, err := cursor.GetCurrentPage(ctx)
	cancel()
	if err != nil {
		return nil, err
	}

	items := page.Items
	for n := 1; !cursor.IsFinished() && (maxPages <= 0 || n < maxPages); n++ {
		ctx, cancel := requestContext(cmd)
		page, err = cursor.AdvanceToNextPage(ctx)
		cancel()
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}
