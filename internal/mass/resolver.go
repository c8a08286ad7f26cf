package mass

import (
	"context"
)

// ContactSource answers population queries over the contact mirror.
// A limit <= 0 means no cap. Results are distinct recipient ids in ascending order.
type ContactSource interface {
	AllRecipients(ctx context.Context, limit int) ([]string, error)
	RecipientsByTags(ctx context.Context, tagIDs []string, limit int) ([]string, error)
	RecipientsByFilter(ctx context.Context, f Filters, limit int) ([]string, error)
	RecipientsByUpload(ctx context.Context, uploadID int64, limit int) ([]string, error)
	UploadIDByToken(ctx context.Context, token string) (int64, error)
}

// Resolver turns a TargetSpec into an ordered, duplicate-free recipient list
type Resolver struct {
	src          ContactSource
	defaultLimit int
}

// NewResolver creates a resolver; defaultLimit caps specs that carry no limit of their own
func NewResolver(src ContactSource, defaultLimit int) *Resolver {
	return &Resolver{src: src, defaultLimit: defaultLimit}
}

// Resolve returns the recipients selected by spec
func (r *Resolver) Resolve(ctx context.Context, spec TargetSpec) ([]string, error) {
	limit := spec.RowLimit()
	if limit <= 0 {
		limit = r.defaultLimit
	}
	ids, err := r.collect(ctx, spec, limit)
	if err != nil {
		return nil, err
	}
	return dedupe(ids, limit), nil
}

// Breakdown counts the uncapped population of spec and of each part it combines
func (r *Resolver) Breakdown(ctx context.Context, spec TargetSpec) (int, map[string]int, error) {
	by := make(map[string]int)

	switch s := spec.(type) {
	case Mixed:
		f, err := r.src.RecipientsByFilter(ctx, s.Filters, 0)
		if err != nil {
			return 0, nil, err
		}
		u, err := r.src.RecipientsByUpload(ctx, s.UploadID, 0)
		if err != nil {
			return 0, nil, err
		}
		mixed := intersect(f, u)
		by["filter"] = len(dedupe(f, 0))
		by["upload"] = len(dedupe(u, 0))
		by["mixed"] = len(mixed)
		return len(mixed), by, nil
	default:
		ids, err := r.collect(ctx, spec, 0)
		if err != nil {
			return 0, nil, err
		}
		n := len(dedupe(ids, 0))
		by[breakdownKey(spec)] = n
		return n, by, nil
	}
}

func breakdownKey(spec TargetSpec) string {
	switch spec.(type) {
	case Filter:
		return "filter"
	case Upload, ByUpload:
		return "upload"
	default:
		return string(spec.Mode())
	}
}

func (r *Resolver) collect(ctx context.Context, spec TargetSpec, limit int) ([]string, error) {
	switch s := spec.(type) {
	case AllContacts:
		return r.src.AllRecipients(ctx, limit)
	case ByTagIDs:
		if len(s.TagIDs) == 0 {
			return nil, nil
		}
		return r.src.RecipientsByTags(ctx, s.TagIDs, limit)
	case ByUpload:
		uploadID := s.UploadID
		if s.UploadToken != "" {
			id, err := r.src.UploadIDByToken(ctx, s.UploadToken)
			if err != nil {
				return nil, err
			}
			uploadID = id
		}
		return r.src.RecipientsByUpload(ctx, uploadID, limit)
	case Filter:
		return r.src.RecipientsByFilter(ctx, s.Filters, limit)
	case Upload:
		return r.src.RecipientsByUpload(ctx, s.UploadID, limit)
	case Mixed:
		// 交集需要完整的两侧集合，截断在交集之后进行
		f, err := r.src.RecipientsByFilter(ctx, s.Filters, 0)
		if err != nil {
			return nil, err
		}
		u, err := r.src.RecipientsByUpload(ctx, s.UploadID, 0)
		if err != nil {
			return nil, err
		}
		return intersect(f, u), nil
	default:
		return nil, ValidationError("unsupported targets_spec mode: %s", spec.Mode())
	}
}

// intersect keeps the ids of a that also appear in b, in a's order
func intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	out := make([]string, 0)
	for _, id := range a {
		if _, ok := inB[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// dedupe drops empty and repeated ids, keeping first occurrence, and applies limit when positive
func dedupe(ids []string, limit int) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
