package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AccountType selects how an entry is synced.
type AccountType string

const (
	// AccountTypeOnBudget imports every transaction
	AccountTypeOnBudget AccountType = "On Budget"
	// AccountTypeTracking only reconciles the balance
	AccountTypeTracking AccountType = "Tracking"
)

// DefaultSyncStart is the high-water mark used when a link has never been synced.
const DefaultSyncStart = "2024-01-01T00:00:00Z"

// TargetLink is the group of fields tying a source account to one target provider.
type TargetLink struct {
	AccountID      string
	AccountName    string
	BudgetID       string
	MatchedDate    string
	SyncedDatetime string
	DoNotMap       bool
}

func (l *TargetLink) empty() bool {
	return *l == TargetLink{}
}

// MappingEntry joins one source account to zero or more target accounts.
type MappingEntry struct {
	AkahuID      string
	AkahuName    string
	AccountType  AccountType
	AkahuBalance *float64
	Links        map[Provider]*TargetLink
	// Extra keeps fields this version does not know about, so they survive a save.
	Extra map[string]json.RawMessage
}

func NewMappingEntry(akahuID, akahuName string) *MappingEntry {
	return &MappingEntry{
		AkahuID:   akahuID,
		AkahuName: akahuName,
		Links:     make(map[Provider]*TargetLink),
	}
}

// Link returns the link for a provider, or nil.
func (e *MappingEntry) Link(p Provider) *TargetLink {
	if e == nil {
		return nil
	}
	return e.Links[p]
}

func (e *MappingEntry) ensureLink(p Provider) *TargetLink {
	if e.Links == nil {
		e.Links = make(map[Provider]*TargetLink)
	}
	l, ok := e.Links[p]
	if !ok {
		l = &TargetLink{}
		e.Links[p] = l
	}
	return l
}

func (e *MappingEntry) IsMapped(p Provider) bool {
	l := e.Link(p)
	return l != nil && l.AccountID != ""
}

func (e *MappingEntry) IsDoNotMap(p Provider) bool {
	l := e.Link(p)
	return l != nil && l.DoNotMap
}

// IsSettled reports whether a decision for p was already made in an earlier pass.
func (e *MappingEntry) IsSettled(p Provider) bool {
	return e.IsMapped(p) || e.IsDoNotMap(p)
}

// Confirm links the entry to a target account.
func (e *MappingEntry) Confirm(p Provider, accountID, accountName, budgetID string, at time.Time) {
	l := e.ensureLink(p)
	l.AccountID = accountID
	l.AccountName = accountName
	l.BudgetID = budgetID
	l.MatchedDate = FormatTimestamp(at)
	l.DoNotMap = false
}

// MarkDoNotMap records that the account has no counterpart in p.
func (e *MappingEntry) MarkDoNotMap(p Provider, at time.Time) {
	l := e.ensureLink(p)
	l.AccountID = ""
	l.AccountName = ""
	l.BudgetID = ""
	l.MatchedDate = FormatTimestamp(at)
	l.DoNotMap = true
}

// ClearLink removes the account id, budget id, account name and matched date for p
// together. Sync bookkeeping and the do-not-map flag are kept.
func (e *MappingEntry) ClearLink(p Provider) {
	if l := e.Link(p); l != nil {
		l.AccountID = ""
		l.AccountName = ""
		l.BudgetID = ""
		l.MatchedDate = ""
		if l.empty() {
			delete(e.Links, p)
		}
	}
	delete(e.Extra, string(p)+"_budget_name")
}

// Type returns the sync strategy, defaulting to On Budget.
func (e *MappingEntry) Type() AccountType {
	if e.AccountType == "" {
		return AccountTypeOnBudget
	}
	return e.AccountType
}

// SyncedSince returns the sync high-water mark for p.
func (e *MappingEntry) SyncedSince(p Provider, fallback string) string {
	if l := e.Link(p); l != nil && l.SyncedDatetime != "" {
		return l.SyncedDatetime
	}
	return fallback
}

// MarkSynced stamps the sync high-water mark for p.
func (e *MappingEntry) MarkSynced(p Provider, at time.Time) {
	e.ensureLink(p).SyncedDatetime = at.UTC().Format("2006-01-02T15:04:05Z")
}

func (e *MappingEntry) Clone() *MappingEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.AkahuBalance != nil {
		b := *e.AkahuBalance
		c.AkahuBalance = &b
	}
	c.Links = make(map[Provider]*TargetLink, len(e.Links))
	for p, l := range e.Links {
		lc := *l
		c.Links[p] = &lc
	}
	if e.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(e.Extra))
		for k, v := range e.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

const (
	fieldAkahuID      = "akahu_id"
	fieldAkahuName    = "akahu_name"
	fieldAccountType  = "account_type"
	fieldAkahuBalance = "akahu_balance"

	suffixAccountID      = "_account_id"
	suffixAccountName    = "_account_name"
	suffixBudgetID       = "_budget_id"
	suffixMatchedDate    = "_matched_date"
	suffixSyncedDatetime = "_synced_datetime"
	suffixDoNotMap       = "_do_not_map"
)

func (e *MappingEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+4+len(e.Links)*6)
	for k, v := range e.Extra {
		out[k] = v
	}
	out[fieldAkahuID] = e.AkahuID
	out[fieldAkahuName] = e.AkahuName
	if e.AccountType != "" {
		out[fieldAccountType] = e.AccountType
	}
	if e.AkahuBalance != nil {
		out[fieldAkahuBalance] = *e.AkahuBalance
	}
	for p, l := range e.Links {
		prefix := string(p)
		putString(out, prefix+suffixAccountID, l.AccountID)
		putString(out, prefix+suffixAccountName, l.AccountName)
		putString(out, prefix+suffixBudgetID, l.BudgetID)
		putString(out, prefix+suffixMatchedDate, l.MatchedDate)
		putString(out, prefix+suffixSyncedDatetime, l.SyncedDatetime)
		if l.DoNotMap {
			out[prefix+suffixDoNotMap] = true
		}
	}
	return json.Marshal(out)
}

func putString(out map[string]any, key, value string) {
	if value != "" {
		out[key] = value
	}
}

func (e *MappingEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = MappingEntry{Links: make(map[Provider]*TargetLink)}

	for key, value := range raw {
		var err error
		switch key {
		case fieldAkahuID:
			e.AkahuID, err = rawString(value)
		case fieldAkahuName:
			e.AkahuName, err = rawString(value)
		case fieldAccountType:
			var s string
			s, err = rawString(value)
			e.AccountType = AccountType(s)
		case fieldAkahuBalance:
			var f *float64
			if err = json.Unmarshal(value, &f); err == nil {
				e.AkahuBalance = f
			}
		default:
			if !e.decodeLinkField(key, value, &err) {
				if e.Extra == nil {
					e.Extra = make(map[string]json.RawMessage)
				}
				e.Extra[key] = value
			}
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}
	for p, l := range e.Links {
		if l.empty() {
			delete(e.Links, p)
		}
	}
	return nil
}

func (e *MappingEntry) decodeLinkField(key string, value json.RawMessage, errOut *error) bool {
	for _, p := range TargetProviders {
		prefix := string(p)
		if !strings.HasPrefix(key, prefix+"_") {
			continue
		}
		suffix := strings.TrimPrefix(key, prefix)
		var target *string
		l := e.ensureLink(p)
		switch suffix {
		case suffixAccountID:
			target = &l.AccountID
		case suffixAccountName:
			target = &l.AccountName
		case suffixBudgetID:
			target = &l.BudgetID
		case suffixMatchedDate:
			target = &l.MatchedDate
		case suffixSyncedDatetime:
			target = &l.SyncedDatetime
		case suffixDoNotMap:
			var b *bool
			if err := json.Unmarshal(value, &b); err != nil {
				*errOut = err
				return true
			}
			l.DoNotMap = b != nil && *b
			return true
		default:
			return false
		}
		s, err := rawString(value)
		if err != nil {
			*errOut = err
			return true
		}
		*target = s
		return true
	}
	return false
}

func rawString(value json.RawMessage) (string, error) {
	var s *string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

// Mapping holds every entry keyed by source account id.
type Mapping map[string]*MappingEntry

// UnmarshalJSON accepts the keyed form and the older list form, where each entry
// carries its own akahu_id.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*m = Mapping{}
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []*MappingEntry
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		out := make(Mapping, len(list))
		for _, entry := range list {
			if entry == nil || entry.AkahuID == "" {
				continue
			}
			out[entry.AkahuID] = entry
		}
		*m = out
		return nil
	}

	var keyed map[string]*MappingEntry
	if err := json.Unmarshal(data, &keyed); err != nil {
		return err
	}
	out := make(Mapping, len(keyed))
	for id, entry := range keyed {
		if entry == nil {
			return fmt.Errorf("mapping entry %q is null", id)
		}
		if entry.AkahuID == "" {
			entry.AkahuID = id
		}
		out[id] = entry
	}
	*m = out
	return nil
}

func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for id, e := range m {
		out[id] = e.Clone()
	}
	return out
}

// Entry returns the entry for a source account, creating it when missing. The
// denormalized source name is refreshed either way.
func (m Mapping) Entry(akahuID, akahuName string) *MappingEntry {
	e, ok := m[akahuID]
	if !ok {
		e = NewMappingEntry(akahuID, akahuName)
		m[akahuID] = e
	}
	e.AkahuID = akahuID
	if akahuName != "" {
		e.AkahuName = akahuName
	}
	return e
}

// ClaimedBy returns the source id already linked to targetID for p.
func (m Mapping) ClaimedBy(p Provider, targetID string) (string, bool) {
	if targetID == "" {
		return "", false
	}
	for id, e := range m {
		if l := e.Link(p); l != nil && l.AccountID == targetID {
			return id, true
		}
	}
	return "", false
}

// Claimed returns the set of target ids linked for p.
func (m Mapping) Claimed(p Provider) map[string]string {
	out := make(map[string]string)
	for id, e := range m {
		if l := e.Link(p); l != nil && l.AccountID != "" {
			out[l.AccountID] = id
		}
	}
	return out
}

// IDs returns the source ids in ascending order.
func (m Mapping) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
