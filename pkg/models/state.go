package models

// State is everything persisted in the mapping file.
type State struct {
	Accounts map[Provider]Accounts
	Mapping  Mapping
}

// MappingKey is the top-level key holding the mapping entries.
const MappingKey = "mapping"

// RequiredKeys lists the top-level keys a valid mapping file must carry.
func RequiredKeys() []string {
	keys := make([]string, 0, len(AllProviders)+1)
	for _, p := range AllProviders {
		keys = append(keys, p.AccountsKey())
	}
	return append(keys, MappingKey)
}

func NewState() *State {
	s := &State{
		Accounts: make(map[Provider]Accounts, len(AllProviders)),
		Mapping:  Mapping{},
	}
	for _, p := range AllProviders {
		s.Accounts[p] = Accounts{}
	}
	return s
}

// For returns the collection for p, never nil.
func (s *State) For(p Provider) Accounts {
	if s.Accounts == nil {
		s.Accounts = make(map[Provider]Accounts)
	}
	as, ok := s.Accounts[p]
	if !ok || as == nil {
		as = Accounts{}
		s.Accounts[p] = as
	}
	return as
}

func (s *State) Clone() *State {
	c := &State{
		Accounts: make(map[Provider]Accounts, len(s.Accounts)),
		Mapping:  s.Mapping.Clone(),
	}
	for p, as := range s.Accounts {
		c.Accounts[p] = as.Clone()
	}
	return c
}
