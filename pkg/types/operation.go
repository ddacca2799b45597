package types

import "time"

// Operation kinds. Each kind is scoped to one entity family: note-like
// (notes and their uploaded assets) or folder-like (containers).
const (
	KindCreateNote   = "create_note"
	KindUpdateNote   = "update_note"
	KindDeleteNote   = "delete_note"
	KindUploadAsset  = "upload_asset"
	KindCreateFolder = "create_folder"
	KindRenameFolder = "rename_folder"
	KindDeleteFolder = "delete_folder"
)

// Entity families. Deduplication keys operations by (family, entity id), so
// a note and a folder that happen to share an id never merge.
const (
	FamilyNote   = "note"
	FamilyFolder = "folder"
)

// Operation statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// validKinds is the set of recognized operation kinds.
var validKinds = map[string]bool{
	KindCreateNote:   true,
	KindUpdateNote:   true,
	KindDeleteNote:   true,
	KindUploadAsset:  true,
	KindCreateFolder: true,
	KindRenameFolder: true,
	KindDeleteFolder: true,
}

// kindFamilies maps each kind to its entity family.
var kindFamilies = map[string]string{
	KindCreateNote:   FamilyNote,
	KindUpdateNote:   FamilyNote,
	KindDeleteNote:   FamilyNote,
	KindUploadAsset:  FamilyNote,
	KindCreateFolder: FamilyFolder,
	KindRenameFolder: FamilyFolder,
	KindDeleteFolder: FamilyFolder,
}

// Operation is one queued write against the remote note service. Rows are
// created by the queue's Enqueue, mutated by the processor (status
// transitions, retry accounting), and deleted on completion or when a
// terminal failure is cleared by the operator.
type Operation struct {
	ID          string    // UUID v7, generated on enqueue.
	Kind        string    // One of the Kind constants.
	EntityID    string    // Target entity; may be a temporary id.
	Payload     []byte    // JSON body handed to the remote client.
	CreatedAt   time.Time // Enqueue time; FIFO tiebreak within a priority.
	Priority    int       // Derived from Kind through Config.PriorityPolicy.
	RetryCount  int       // Number of failed dispatch attempts so far.
	LastError   string    // Message from the most recent failure, if any.
	Status      string    // One of the Status constants.
	NextRetryAt time.Time // Earliest re-dispatch time for a retryable failure.
}

// Family returns the entity family for the operation's kind, or "" for an
// unrecognized kind.
func (o *Operation) Family() string {
	return kindFamilies[o.Kind]
}

// IsCreate reports whether the operation creates a new entity and therefore
// carries a client-generated temporary id.
func (o *Operation) IsCreate() bool {
	return o.Kind == KindCreateNote || o.Kind == KindCreateFolder
}

// IsDelete reports whether the operation deletes its entity. A delete
// supersedes every other queued operation for the same entity.
func (o *Operation) IsDelete() bool {
	return o.Kind == KindDeleteNote || o.Kind == KindDeleteFolder
}

// Validate checks that the operation is well-formed for enqueueing.
func (o *Operation) Validate() error {
	if !validKinds[o.Kind] {
		return ErrUnknownKind
	}
	if o.EntityID == "" {
		return ErrInvalidEntityID
	}
	return nil
}

// KindFamily returns the entity family for a kind, or "" if the kind is not
// recognized.
func KindFamily(kind string) string {
	return kindFamilies[kind]
}
