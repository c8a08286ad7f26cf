package mass

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Mode identifies a targeting variant
type Mode string

const (
	ModeAllContacts   Mode = "all_contacts"
	ModeByTagIDs      Mode = "by_tag_ids"
	ModeByUploadToken Mode = "by_upload_token"
	ModeByUploadID    Mode = "by_upload_id"
	ModeFilter        Mode = "FILTER"
	ModeUpload        Mode = "UPLOAD"
	ModeMixed         Mode = "MIXED"
)

// TargetSpec is the closed set of ways to select a task population.
// Resolver switches over the concrete types below.
type TargetSpec interface {
	Mode() Mode
	// RowLimit is the explicit cap, 0 when the default applies
	RowLimit() int
	isTargetSpec()
}

// Filters are AND-combined predicates over ext_contact
type Filters struct {
	Q            string     `json:"q,omitempty"`
	OwnerUserIDs StringList `json:"owner_userids,omitempty"`
	StoreIDs     StringList `json:"store_ids,omitempty"`
	BrandIDs     StringList `json:"brand_ids,omitempty"`
	TagIDs       StringList `json:"tag_ids,omitempty"`
	// nil 不过滤，true 仅有 unionid，false 仅无 unionid
	HasUnionID *bool `json:"has_unionid,omitempty"`
}

type AllContacts struct {
	Limit int `json:"limit,omitempty"`
}

type ByTagIDs struct {
	TagIDs []string `json:"tag_ids"`
	Limit  int      `json:"limit,omitempty"`
}

// ByUpload selects the contacts mapped from an uploaded mobile list, by token or by id
type ByUpload struct {
	UploadToken string `json:"upload_token,omitempty"`
	UploadID    int64  `json:"upload_id,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

type Filter struct {
	Filters Filters `json:"filters"`
	Limit   int     `json:"limit,omitempty"`
}

type Upload struct {
	UploadID int64 `json:"upload_id"`
	Limit    int   `json:"limit,omitempty"`
}

// Mixed is the intersection of a filter population and an upload population
type Mixed struct {
	Filters  Filters `json:"filters"`
	UploadID int64   `json:"upload_id"`
	Limit    int     `json:"limit,omitempty"`
}

func (AllContacts) Mode() Mode { return ModeAllContacts }
func (ByTagIDs) Mode() Mode    { return ModeByTagIDs }
func (Filter) Mode() Mode      { return ModeFilter }
func (Upload) Mode() Mode      { return ModeUpload }
func (Mixed) Mode() Mode       { return ModeMixed }

func (s ByUpload) Mode() Mode {
	if s.UploadToken != "" {
		return ModeByUploadToken
	}
	return ModeByUploadID
}

func (s AllContacts) RowLimit() int { return s.Limit }
func (s ByTagIDs) RowLimit() int    { return s.Limit }
func (s ByUpload) RowLimit() int    { return s.Limit }
func (s Filter) RowLimit() int      { return s.Limit }
func (s Upload) RowLimit() int      { return s.Limit }
func (s Mixed) RowLimit() int       { return s.Limit }

func (AllContacts) isTargetSpec() {}
func (ByTagIDs) isTargetSpec()    {}
func (ByUpload) isTargetSpec()    {}
func (Filter) isTargetSpec()      {}
func (Upload) isTargetSpec()      {}
func (Mixed) isTargetSpec()       {}

// StringList accepts either a JSON array or a comma separated string
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = splitList(strings.Split(s, ","))
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("expected array or comma separated string")
	}
	out := make([]string, 0, len(items))
	for _, raw := range items {
		s, err := scalarString(raw)
		if err != nil {
			return err
		}
		out = append(out, s)
	}
	*l = splitList(out)
	return nil
}

func splitList(items []string) StringList {
	out := make(StringList, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// scalarString renders a JSON string or number as text
func scalarString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("expected string or number, got %s", string(raw))
}

// flexInt accepts 12, "12" or null
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s, err := scalarString(data)
	if err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	*f = flexInt(n)
	return nil
}

// flexBool accepts true/false, 1/0 and their string forms
type flexBool struct {
	set bool
	val bool
}

func (f *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.set, f.val = true, b
		return nil
	}
	s, err := scalarString(data)
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil
	case "1", "true", "yes":
		f.set, f.val = true, true
	case "0", "false", "no":
		f.set, f.val = true, false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

type filtersDoc struct {
	Q            string     `json:"q"`
	OwnerUserIDs StringList `json:"owner_userids"`
	StoreIDs     StringList `json:"store_ids"`
	BrandIDs     StringList `json:"brand_ids"`
	TagIDs       StringList `json:"tag_ids"`
	HasUnionID   flexBool   `json:"has_unionid"`
}

func (d filtersDoc) filters() Filters {
	f := Filters{
		Q:            strings.TrimSpace(d.Q),
		OwnerUserIDs: d.OwnerUserIDs,
		StoreIDs:     d.StoreIDs,
		BrandIDs:     d.BrandIDs,
		TagIDs:       d.TagIDs,
	}
	if d.HasUnionID.set {
		v := d.HasUnionID.val
		f.HasUnionID = &v
	}
	return f
}

type targetSpecDoc struct {
	Mode        string      `json:"mode"`
	Limit       flexInt     `json:"limit"`
	TagIDs      StringList  `json:"tag_ids"`
	UploadToken string      `json:"upload_token"`
	UploadID    flexInt     `json:"upload_id"`
	Filters     *filtersDoc `json:"filters"`
}

// ParseTargetSpec decodes a targets_spec document. An empty document selects all contacts.
func ParseTargetSpec(raw []byte) (TargetSpec, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return AllContacts{}, nil
	}

	var doc targetSpecDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ValidationError("invalid targets_spec: %v", err)
	}
	if doc.Limit < 0 {
		return nil, ValidationError("targets_spec limit must not be negative")
	}
	limit := int(doc.Limit)

	var filters Filters
	if doc.Filters != nil {
		filters = doc.Filters.filters()
	}
	mode := strings.TrimSpace(doc.Mode)

	switch strings.ToLower(mode) {
	case "", "all_contacts":
		return AllContacts{Limit: limit}, nil
	case "by_tag_ids":
		tags := []string(doc.TagIDs)
		if len(tags) == 0 {
			tags = filters.TagIDs
		}
		return ByTagIDs{TagIDs: tags, Limit: limit}, nil
	case "by_upload_token":
		token := strings.TrimSpace(doc.UploadToken)
		if token == "" {
			return nil, ValidationError("upload_token required for by_upload_token mode")
		}
		return ByUpload{UploadToken: token, Limit: limit}, nil
	case "by_upload_id":
		if doc.UploadID <= 0 {
			return nil, ValidationError("upload_id required for by_upload_id mode")
		}
		return ByUpload{UploadID: int64(doc.UploadID), Limit: limit}, nil
	case "filter":
		return Filter{Filters: filters, Limit: limit}, nil
	case "upload":
		if doc.UploadID <= 0 {
			return nil, ValidationError("upload_id required for UPLOAD mode")
		}
		return Upload{UploadID: int64(doc.UploadID), Limit: limit}, nil
	case "mixed":
		if doc.UploadID <= 0 {
			return nil, ValidationError("upload_id required for MIXED mode")
		}
		return Mixed{Filters: filters, UploadID: int64(doc.UploadID), Limit: limit}, nil
	default:
		return nil, ValidationError("unsupported targets_spec mode: %s", mode)
	}
}

// CanonicalKey is a stable text form of spec, used as a cache key
func CanonicalKey(spec TargetSpec) string {
	b, err := json.Marshal(spec)
	if err != nil {
		return string(spec.Mode())
	}
	return string(spec.Mode()) + ":" + string(b)
}
