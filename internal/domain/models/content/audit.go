package content

import "time"

// Actor is the opaque identity attributed on every mutating operation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SystemActor performs scheduled and maintenance work.
var SystemActor = Actor{ID: "system", Name: "System"}

// AuditAction is the kind of state transition recorded in the audit log.
type AuditAction string

const (
	AuditNew           AuditAction = "new"
	AuditSave          AuditAction = "save"
	AuditPublish       AuditAction = "publish"
	AuditUnpublish     AuditAction = "unpublish"
	AuditSendToPublish AuditAction = "send_to_publish"
	AuditCopy          AuditAction = "copy"
	AuditRollback      AuditAction = "rollback"
	AuditMove          AuditAction = "move"
	AuditMoveToTrash   AuditAction = "move_to_trash"
	AuditRestore       AuditAction = "restore"
	AuditDelete        AuditAction = "delete"
	AuditSystem        AuditAction = "system"
)

// AuditEntry is one append-only audit log row.
type AuditEntry struct {
	ID        int64       `json:"id" db:"id"`
	ActorID   string      `json:"actor_id" db:"actor_id"`
	Action    AuditAction `json:"action" db:"action"`
	NodeID    int64       `json:"node_id" db:"node_id"`
	Detail    string      `json:"detail" db:"detail"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}
