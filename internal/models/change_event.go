package models

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// ChangeEvent is one entry of a table's live change stream. Created and
// Updated carry the full record; Deleted carries only the identifier and,
// when the store knows it, the owner of the removed row.
type ChangeEvent[R Record] struct {
	Kind    ChangeKind `json:"kind"`
	Table   string     `json:"table"`
	Record  R          `json:"record,omitempty"`
	ID      string     `json:"id,omitempty"`
	OwnerID string     `json:"owner_id,omitempty"`
}

func Created[R Record](table string, r R) ChangeEvent[R] {
	return ChangeEvent[R]{Kind: ChangeCreated, Table: table, Record: r}
}

func Updated[R Record](table string, r R) ChangeEvent[R] {
	return ChangeEvent[R]{Kind: ChangeUpdated, Table: table, Record: r}
}

func Deleted[R Record](table, id, ownerID string) ChangeEvent[R] {
	return ChangeEvent[R]{Kind: ChangeDeleted, Table: table, ID: id, OwnerID: ownerID}
}

// Key is the identifier of the record the event refers to.
func (e ChangeEvent[R]) Key() string {
	if e.Kind == ChangeDeleted {
		return e.ID
	}
	return e.Record.RecordID()
}

// Owner is the principal the affected record belongs to. It is empty for
// deletions whose owner the store did not report.
func (e ChangeEvent[R]) Owner() string {
	if e.Kind == ChangeDeleted {
		return e.OwnerID
	}
	return e.Record.RecordOwner()
}

func (e ChangeEvent[R]) Valid() bool {
	switch e.Kind {
	case ChangeCreated, ChangeUpdated, ChangeDeleted:
		return e.Key() != ""
	}
	return false
}
