package domain

// EntityKind names a host-application entity that a file can be linked to.
// The set is closed: links with kinds outside this registry are rejected, so
// the polymorphic (kind, id) edges stay mechanically checkable.
type EntityKind string

const (
	EntityAsset         EntityKind = "asset"
	EntityProject       EntityKind = "project"
	EntityTicket        EntityKind = "ticket"
	EntityVulnerability EntityKind = "vulnerability"
	EntityPlaybook      EntityKind = "playbook"
	EntitySoftware      EntityKind = "software"
)

var entityKinds = map[EntityKind]struct{}{
	EntityAsset:         {},
	EntityProject:       {},
	EntityTicket:        {},
	EntityVulnerability: {},
	EntityPlaybook:      {},
	EntitySoftware:      {},
}

// ValidEntityKind reports whether kind belongs to the registry.
func ValidEntityKind(kind EntityKind) bool {
	_, ok := entityKinds[kind]
	return ok
}
