// Package stations implements the charging-station registry.
//
// Two uniqueness invariants rule everything here: at most one station per
// owner, and at most one station per location. Both are enforced through
// auxiliary indexes that every mutation keeps in lockstep with the station
// table: a station never exists without its two index entries, and an index
// entry never outlives its station.
package stations

import (
	"github.com/holiman/uint256"

	"github.com/voltgrid-network/voltgrid/internal/domain"
)

// Validation bounds for station fields.
const (
	MaxNameLen     = 50
	MaxLocationLen = 100
	MinPowerKW     = 1
	MaxPowerKW     = 1000
)

// Station is a registered charging station.
type Station struct {
	ID           uint64           `json:"id"`
	Name         string           `json:"name"`
	Owner        domain.Principal `json:"owner"`
	Location     string           `json:"location"`
	PowerKW      uint64           `json:"power_kw"`
	PricePerKWh  uint64           `json:"price_per_kwh"`
	Active       bool             `json:"active"`
	RegisteredAt uint64           `json:"registered_at"`
}

// Registry holds the complete station-registry state.
type Registry struct {
	admin           domain.Principal
	registrationFee *uint256.Int
	nextID          uint64
	totalStations   uint64
	stations        map[uint64]*Station
	byOwner         map[domain.Principal]uint64
	byLocation      map[string]uint64
	transfer        domain.SettlementTransfer
}

// New creates an empty registry. The settlement transfer func is invoked for
// registration fees; it must either fully apply or fully fail.
func New(admin domain.Principal, registrationFee *uint256.Int, transfer domain.SettlementTransfer) *Registry {
	return &Registry{
		admin:           admin,
		registrationFee: registrationFee.Clone(),
		stations:        make(map[uint64]*Station),
		byOwner:         make(map[domain.Principal]uint64),
		byLocation:      make(map[string]uint64),
		transfer:        transfer,
	}
}

// ─── Registration ───────────────────────────────────────────────────────────

// Register validates and records a new station owned by the caller, charging
// the registration fee to the caller. Returns the new station id.
//
// Check order matters for the returned error kind and mirrors the deployed
// contract: owner uniqueness, field bounds, location uniqueness, then the fee.
func (r *Registry) Register(call domain.Call, name, location string, powerKW, pricePerKWh uint64) (uint64, error) {
	if _, taken := r.byOwner[call.Caller]; taken {
		return 0, domain.ErrAlreadyRegistered
	}
	if len(name) == 0 || len(name) > MaxNameLen {
		return 0, domain.ErrInvalidName
	}
	if len(location) == 0 || len(location) > MaxLocationLen {
		return 0, domain.ErrInvalidLocation
	}
	if powerKW < MinPowerKW || powerKW > MaxPowerKW {
		return 0, domain.ErrInvalidPower
	}
	if pricePerKWh == 0 {
		return 0, domain.ErrInvalidPrice
	}
	if _, taken := r.byLocation[location]; taken {
		return 0, domain.ErrAlreadyRegistered
	}

	// Fee first: if settlement fails nothing below runs, so the whole
	// registration aborts with it.
	if r.transfer != nil {
		if err := r.transfer(r.registrationFee.Clone(), call.Caller, r.admin); err != nil {
			return 0, err
		}
	}

	id := r.nextID
	r.stations[id] = &Station{
		ID:           id,
		Name:         name,
		Owner:        call.Caller,
		Location:     location,
		PowerKW:      powerKW,
		PricePerKWh:  pricePerKWh,
		Active:       true,
		RegisteredAt: call.Height,
	}
	r.byOwner[call.Caller] = id
	r.byLocation[location] = id
	r.nextID++
	r.totalStations++
	return id, nil
}

// Update rewrites a station's mutable fields. Owner-only. A location change
// atomically swaps the location index entry, and only if the new location is
// free.
func (r *Registry) Update(call domain.Call, id uint64, name, location string, powerKW, pricePerKWh uint64) error {
	st, ok := r.stations[id]
	if !ok {
		return domain.ErrNotRegistered
	}
	if st.Owner != call.Caller {
		return domain.ErrUnauthorized
	}
	if len(name) == 0 || len(name) > MaxNameLen {
		return domain.ErrInvalidName
	}
	if powerKW < MinPowerKW || powerKW > MaxPowerKW {
		return domain.ErrInvalidPower
	}
	if pricePerKWh == 0 {
		return domain.ErrInvalidPrice
	}

	if st.Location != location {
		if _, taken := r.byLocation[location]; taken {
			return domain.ErrAlreadyRegistered
		}
		delete(r.byLocation, st.Location)
		r.byLocation[location] = id
	}

	st.Name = name
	st.Location = location
	st.PowerKW = powerKW
	st.PricePerKWh = pricePerKWh
	return nil
}

// ToggleStatus flips a station's active flag. Owner-only.
func (r *Registry) ToggleStatus(call domain.Call, id uint64) error {
	st, ok := r.stations[id]
	if !ok {
		return domain.ErrNotRegistered
	}
	if st.Owner != call.Caller {
		return domain.ErrUnauthorized
	}
	st.Active = !st.Active
	return nil
}

// TransferOwnership reassigns a station to newOwner, moving the owner index
// entry. Owner-only.
//
// Deliberately does NOT check whether newOwner already owns another station:
// the deployed contract permits the one-station-per-owner invariant to lapse
// here until the new owner's old station is deregistered, and we preserve
// that behavior exactly.
func (r *Registry) TransferOwnership(call domain.Call, id uint64, newOwner domain.Principal) error {
	st, ok := r.stations[id]
	if !ok {
		return domain.ErrNotRegistered
	}
	if st.Owner != call.Caller {
		return domain.ErrUnauthorized
	}
	delete(r.byOwner, st.Owner)
	r.byOwner[newOwner] = id
	st.Owner = newOwner
	return nil
}

// Deregister removes a station plus both of its index entries in one step.
// The caller must be the station's owner or the registry admin.
func (r *Registry) Deregister(call domain.Call, id uint64) error {
	st, ok := r.stations[id]
	if !ok {
		return domain.ErrNotRegistered
	}
	if st.Owner != call.Caller && call.Caller != r.admin {
		return domain.ErrUnauthorized
	}
	delete(r.stations, id)
	delete(r.byOwner, st.Owner)
	delete(r.byLocation, st.Location)
	r.totalStations--
	return nil
}

// ─── Administration ─────────────────────────────────────────────────────────

// SetAdmin hands the registry admin role to newAdmin. Admin-only.
func (r *Registry) SetAdmin(call domain.Call, newAdmin domain.Principal) error {
	if call.Caller != r.admin {
		return domain.ErrUnauthorized
	}
	r.admin = newAdmin
	return nil
}

// SetRegistrationFee changes the fee charged at registration. Admin-only; the
// fee must be positive.
func (r *Registry) SetRegistrationFee(call domain.Call, fee *uint256.Int) error {
	if call.Caller != r.admin {
		return domain.ErrUnauthorized
	}
	if fee.IsZero() {
		return domain.ErrInvalidPrice
	}
	r.registrationFee = fee.Clone()
	return nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Get returns a copy of the station with the given id.
func (r *Registry) Get(id uint64) (Station, bool) {
	st, ok := r.stations[id]
	if !ok {
		return Station{}, false
	}
	return *st, true
}

// IsRegistered reports whether p currently owns a station. This is the
// predicate the rewards distributor consumes.
func (r *Registry) IsRegistered(p domain.Principal) bool {
	_, ok := r.byOwner[p]
	return ok
}

// StationByOwner returns the id of the station p owns, if any.
func (r *Registry) StationByOwner(p domain.Principal) (uint64, bool) {
	id, ok := r.byOwner[p]
	return id, ok
}

// StationByLocation returns the id of the station at location, if any.
func (r *Registry) StationByLocation(location string) (uint64, bool) {
	id, ok := r.byLocation[location]
	return id, ok
}

// TotalStations returns the number of currently registered stations.
func (r *Registry) TotalStations() uint64 { return r.totalStations }

// Admin returns the current registry admin.
func (r *Registry) Admin() domain.Principal { return r.admin }

// RegistrationFee returns the current registration fee.
func (r *Registry) RegistrationFee() *uint256.Int { return r.registrationFee.Clone() }

// Stations returns a copy of every station row, for persistence snapshots.
func (r *Registry) Stations() []Station {
	out := make([]Station, 0, len(r.stations))
	for _, st := range r.stations {
		out = append(out, *st)
	}
	return out
}

// NextID returns the next id to be allocated, for persistence snapshots.
func (r *Registry) NextID() uint64 { return r.nextID }

// ─── Restore ────────────────────────────────────────────────────────────────

// Restore rebuilds a registry from persisted state, reconstructing both
// indexes from the station rows.
func Restore(admin domain.Principal, fee *uint256.Int, transfer domain.SettlementTransfer,
	nextID uint64, list []Station) *Registry {

	r := New(admin, fee, transfer)
	r.nextID = nextID
	for _, st := range list {
		s := st
		r.stations[s.ID] = &s
		r.byOwner[s.Owner] = s.ID
		r.byLocation[s.Location] = s.ID
	}
	r.totalStations = uint64(len(list))
	return r
}
