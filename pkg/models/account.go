package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"
)

// Provider identifies one of the systems accounts are reconciled across.
type Provider string

const (
	ProviderAkahu  Provider = "akahu"
	ProviderYNAB   Provider = "ynab"
	ProviderActual Provider = "actual"
)

// SourceProvider supplies the accounts that get mapped onto the targets.
const SourceProvider = ProviderAkahu

var (
	// TargetProviders lists the budgeting apps in the order they are matched.
	TargetProviders = []Provider{ProviderYNAB, ProviderActual}
	// AllProviders is the source followed by every target.
	AllProviders = append([]Provider{SourceProvider}, TargetProviders...)
)

func (p Provider) String() string {
	return string(p)
}

// AccountsKey is the top-level key holding this provider's accounts in the mapping file.
func (p Provider) AccountsKey() string {
	return string(p) + "_accounts"
}

// TimestampLayout is used for every timestamp written into the mapping file.
const TimestampLayout = time.RFC3339

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Reserved account keys. Everything else is a provider attribute.
const (
	keyID              = "id"
	keyName            = "name"
	keyStatus          = "status"
	keyConnection      = "connection"
	keyDateFirstLoaded = "date_first_loaded"
	keySeq             = "seq"
)

// Account is the provider-independent view of an account.
type Account struct {
	// ID is the provider-native identifier
	ID string
	// Name is the display name, the only field used for matching
	Name string
	// Status is the provider status, e.g. ACTIVE
	Status string
	// Connection names the institution behind the account, when the provider has one
	Connection string
	// DateFirstLoaded is set once, when the account first enters the mapping file
	DateFirstLoaded string
	// Seq is the display index assigned during a matching pass. It is never persisted.
	Seq int
	// Attributes holds extra provider fields. Values are scalars only.
	Attributes map[string]any
}

// SetAttribute stores a provider attribute, dropping values that are not scalars.
func (a *Account) SetAttribute(key string, value any) {
	v, ok := NormalizeScalar(value)
	if !ok {
		return
	}
	if a.Attributes == nil {
		a.Attributes = make(map[string]any)
	}
	a.Attributes[key] = v
}

// Attribute returns a provider attribute as a string.
func (a *Account) Attribute(key string) string {
	v, ok := a.Attributes[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Projection returns the scalar fields that describe the account as the provider sees it.
// Bookkeeping fields (date_first_loaded, seq) are not part of it.
func (a *Account) Projection() map[string]any {
	p := make(map[string]any, len(a.Attributes)+4)
	maps.Copy(p, a.Attributes)
	p[keyID] = a.ID
	p[keyName] = a.Name
	if a.Status != "" {
		p[keyStatus] = a.Status
	}
	if a.Connection != "" {
		p[keyConnection] = a.Connection
	}
	return p
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Attributes != nil {
		c.Attributes = maps.Clone(a.Attributes)
	}
	return &c
}

func (a *Account) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Attributes)+6)
	maps.Copy(out, a.Attributes)
	out[keyID] = a.ID
	out[keyName] = a.Name
	if a.Status != "" {
		out[keyStatus] = a.Status
	}
	if a.Connection != "" {
		out[keyConnection] = a.Connection
	}
	if a.DateFirstLoaded != "" {
		out[keyDateFirstLoaded] = a.DateFirstLoaded
	}
	if a.Seq != 0 {
		out[keySeq] = a.Seq
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a flattened account. Nested values are dropped and a stored
// seq is ignored.
func (a *Account) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Account{}
	for k, v := range raw {
		switch k {
		case keyID:
			a.ID = scalarString(v)
		case keyName:
			a.Name = scalarString(v)
		case keyStatus:
			a.Status = scalarString(v)
		case keyConnection:
			a.Connection = scalarString(v)
		case keyDateFirstLoaded:
			a.DateFirstLoaded = scalarString(v)
		case keySeq:
		default:
			a.SetAttribute(k, v)
		}
	}
	return nil
}

// Accounts is one provider's collection keyed by provider-native id.
type Accounts map[string]*Account

// UnmarshalJSON accepts the keyed form and the older list form.
func (as *Accounts) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*as = Accounts{}
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []*Account
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		out := make(Accounts, len(list))
		for _, acc := range list {
			if acc == nil || acc.ID == "" {
				return fmt.Errorf("account list entry without id")
			}
			out[acc.ID] = acc
		}
		*as = out
		return nil
	}

	var keyed map[string]*Account
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}
	out := make(Accounts, len(keyed))
	for id, acc := range keyed {
		if acc == nil {
			return fmt.Errorf("account %q is null", id)
		}
		if acc.ID == "" {
			acc.ID = id
		}
		out[id] = acc
	}
	*as = out
	return nil
}

func (as Accounts) Clone() Accounts {
	out := make(Accounts, len(as))
	for id, acc := range as {
		out[id] = acc.Clone()
	}
	return out
}

// IDs returns the account ids in ascending order.
func (as Accounts) IDs() []string {
	ids := make([]string, 0, len(as))
	for id := range as {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Without returns the accounts whose ids are not listed.
func (as Accounts) Without(ids []string) Accounts {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := make(Accounts, len(as))
	for id, acc := range as {
		if _, ok := drop[id]; !ok {
			out[id] = acc
		}
	}
	return out
}

// SortedByName orders accounts by case-insensitive name, then id.
func (as Accounts) SortedByName() []*Account {
	list := make([]*Account, 0, len(as))
	for _, acc := range as {
		list = append(list, acc)
	}
	sort.SliceStable(list, func(i, j int) bool {
		ni, nj := strings.ToLower(list[i].Name), strings.ToLower(list[j].Name)
		if ni != nj {
			return ni < nj
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// NormalizeScalar reduces a value to string, float64, bool or nil.
func NormalizeScalar(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string, bool, float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String(), true
		}
		return f, true
	default:
		return nil, false
	}
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		if s, ok := NormalizeScalar(v); ok {
			return fmt.Sprint(s)
		}
		return ""
	}
}
