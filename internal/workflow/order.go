package workflow

// Status vocabulary shared by the order-family documents (sales orders,
// purchase orders, projects, job orders). Quotations and invoices declare
// their own vocabularies next to their machines.
const (
	StatusDraft      Status = "DRAFT"
	StatusConfirmed  Status = "CONFIRMED"
	StatusOnProgress Status = "ON_PROGRESS"
	StatusOnHold     Status = "ON_HOLD"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// OrderPermissions names the permission codes an order-family machine
// checks per transition. Each document type supplies its own codes.
type OrderPermissions struct {
	Confirm  string
	Progress string
	Hold     string
	Complete string
	Cancel   string
}

// NewOrderMachine builds the lifecycle common to the order-family
// documents:
//
//	DRAFT       -> CONFIRMED | CANCELLED
//	CONFIRMED   -> ON_PROGRESS | ON_HOLD | CANCELLED
//	ON_PROGRESS -> COMPLETED | ON_HOLD | CANCELLED
//	ON_HOLD     -> ON_PROGRESS | CANCELLED
//
// COMPLETED and CANCELLED are terminal.
func NewOrderMachine[T any](name string, perms OrderPermissions, statusOf func(T) Status, setStatus func(T, Status)) *Machine[T] {
	return New(name, StatusDraft, statusOf, setStatus).
		Permit(StatusDraft, StatusConfirmed, StatusCancelled).
		Permit(StatusConfirmed, StatusOnProgress, StatusOnHold, StatusCancelled).
		Permit(StatusOnProgress, StatusCompleted, StatusOnHold, StatusCancelled).
		Permit(StatusOnHold, StatusOnProgress, StatusCancelled).
		Require(StatusDraft, StatusConfirmed, perms.Confirm).
		Require(StatusDraft, StatusCancelled, perms.Cancel).
		Require(StatusConfirmed, StatusOnProgress, perms.Progress).
		Require(StatusConfirmed, StatusOnHold, perms.Hold).
		Require(StatusConfirmed, StatusCancelled, perms.Cancel).
		Require(StatusOnProgress, StatusCompleted, perms.Complete).
		Require(StatusOnProgress, StatusOnHold, perms.Hold).
		Require(StatusOnProgress, StatusCancelled, perms.Cancel).
		Require(StatusOnHold, StatusOnProgress, perms.Progress).
		Require(StatusOnHold, StatusCancelled, perms.Cancel)
}
