// Package rbac defines permission codes and the HTTP middleware enforcing
// them. Permission checks at workflow transitions go through the same codes
// via the actor attached to the request context.
package rbac

// Document lifecycle permissions.
const (
	PermQuotationSend   = "sales.quotation.send"
	PermQuotationAccept = "sales.quotation.accept"
	PermQuotationCancel = "sales.quotation.cancel"
	PermQuotationOrder  = "sales.quotation.order"
	PermQuotationPurge  = "sales.quotation.purge"

	PermOrderConfirm  = "sales.order.confirm"
	PermOrderProgress = "sales.order.progress"
	PermOrderHold     = "sales.order.hold"
	PermOrderComplete = "sales.order.complete"
	PermOrderCancel   = "sales.order.cancel"

	PermPurchaseConfirm  = "procurement.order.confirm"
	PermPurchaseProgress = "procurement.order.progress"
	PermPurchaseHold     = "procurement.order.hold"
	PermPurchaseComplete = "procurement.order.complete"
	PermPurchaseCancel   = "procurement.order.cancel"

	PermProjectConfirm  = "projects.project.confirm"
	PermProjectProgress = "projects.project.progress"
	PermProjectHold     = "projects.project.hold"
	PermProjectComplete = "projects.project.complete"
	PermProjectCancel   = "projects.project.cancel"

	PermJobConfirm  = "job.order.confirm"
	PermJobProgress = "job.order.progress"
	PermJobHold     = "job.order.hold"
	PermJobComplete = "job.order.complete"
	PermJobCancel   = "job.order.cancel"

	PermInvoiceConfirm = "billing.invoice.confirm"
	PermInvoiceReceive = "billing.invoice.receive_payment"
	PermInvoiceCreate  = "billing.invoice.create"

	PermJournalPost = "accounting.journal.post"
	PermJournalVoid = "accounting.journal.void"

	PermFeePeriodGenerate = "job.fee_period.generate"
	PermFeePeriodApprove  = "job.fee_period.approve"
)

// LifecycleScopes lists every permission the document engine checks.
func LifecycleScopes() []string {
	return []string{
		PermQuotationSend, PermQuotationAccept, PermQuotationCancel,
		PermQuotationOrder, PermQuotationPurge,
		PermOrderConfirm, PermOrderProgress, PermOrderHold,
		PermOrderComplete, PermOrderCancel,
		PermPurchaseConfirm, PermPurchaseProgress, PermPurchaseHold,
		PermPurchaseComplete, PermPurchaseCancel,
		PermProjectConfirm, PermProjectProgress, PermProjectHold,
		PermProjectComplete, PermProjectCancel,
		PermJobConfirm, PermJobProgress, PermJobHold,
		PermJobComplete, PermJobCancel,
		PermInvoiceConfirm, PermInvoiceReceive, PermInvoiceCreate,
		PermJournalPost, PermJournalVoid,
		PermFeePeriodGenerate, PermFeePeriodApprove,
	}
}
