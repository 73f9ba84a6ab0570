package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/related-content/pkg/errors"
)

// CacheKeyPrefix starts every related-query cache key.
const CacheKeyPrefix = "mltq_"

// FieldsMode selects the shape of a result set.
type FieldsMode string

const (
	FieldsIDs FieldsMode = "ids"
	FieldsAll FieldsMode = "all"
)

// QueryArgs are the options of a related-items query. Zero values mean
// "use the default" until Merge fills them in.
type QueryArgs struct {
	PostsPerPage int
	// P is the reference item ID.
	P      int64
	Fields FieldsMode
	// Extra holds unrecognised options. They do not change the query but
	// take part in the cache key.
	Extra map[string]string
}

// Defaults are host-supplied values for unset options.
type Defaults struct {
	PostsPerPage int
}

// ArgsFromValues parses URL query values. Unknown keys are kept in Extra
// with their first value.
func ArgsFromValues(values url.Values) (QueryArgs, error) {
	var args QueryArgs
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		switch key {
		case "posts_per_page":
			n, err := strconv.Atoi(v)
			if err != nil {
				return QueryArgs{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "posts_per_page %q is not an integer", v)
			}
			args.PostsPerPage = n
		case "p":
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return QueryArgs{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "p %q is not an item id", v)
			}
			args.P = id
		case "fields":
			args.Fields = FieldsMode(v)
		default:
			if args.Extra == nil {
				args.Extra = make(map[string]string)
			}
			args.Extra[key] = v
		}
	}
	return args, nil
}

// Merge fills unset options from d and the context item.
func (a QueryArgs) Merge(d Defaults, contextItemID int64) QueryArgs {
	merged := a
	if merged.PostsPerPage == 0 {
		merged.PostsPerPage = d.PostsPerPage
	}
	if merged.P == 0 {
		merged.P = contextItemID
	}
	if merged.Fields == "" {
		merged.Fields = FieldsIDs
	}
	if len(a.Extra) > 0 {
		merged.Extra = make(map[string]string, len(a.Extra))
		for k, v := range a.Extra {
			merged.Extra[k] = v
		}
	}
	return merged
}

// Validate checks merged args. maxPerPage <= 0 disables the upper bound.
func (a QueryArgs) Validate(maxPerPage int) error {
	if a.P <= 0 {
		return fmt.Errorf("reference item id must be positive, got %d: %w", a.P, apperrors.ErrInvalidInput)
	}
	if a.PostsPerPage < 1 {
		return fmt.Errorf("posts_per_page must be positive, got %d: %w", a.PostsPerPage, apperrors.ErrInvalidInput)
	}
	if maxPerPage > 0 && a.PostsPerPage > maxPerPage {
		return fmt.Errorf("posts_per_page %d exceeds maximum %d: %w", a.PostsPerPage, maxPerPage, apperrors.ErrInvalidInput)
	}
	return nil
}

// CacheKey derives the cache key of merged args. Options are serialised
// with sorted keys, so equal option sets always map to the same key.
func CacheKey(a QueryArgs) (string, error) {
	options := make(map[string]string, len(a.Extra)+3)
	for k, v := range a.Extra {
		options[k] = v
	}
	options["posts_per_page"] = strconv.Itoa(a.PostsPerPage)
	options["p"] = strconv.FormatInt(a.P, 10)
	options["fields"] = string(a.Fields)

	canonical, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("serialising query args: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return CacheKeyPrefix + hex.EncodeToString(sum[:16]), nil
}
