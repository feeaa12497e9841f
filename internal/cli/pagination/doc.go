// Package pagination provides paging and sorting for CLI list commands.
//
// This package contains:
//   - PaginationParams: --limit/--offset or --page/--page-size handling
//   - PaginationMeta: page metadata for list footers
//   - FieldSorter: stable sorting of any item type by named fields
package pagination
