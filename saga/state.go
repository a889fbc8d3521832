package saga

// Status Saga 状态.
type Status string

// Saga 状态常量.
const (
	StatusStarted            Status = "STARTED"
	StatusPaymentProcessing  Status = "PAYMENT_PROCESSING"
	StatusPaymentCompleted   Status = "PAYMENT_COMPLETED"
	StatusInventoryReserving Status = "INVENTORY_RESERVING"
	StatusInventoryReserved  Status = "INVENTORY_RESERVED"
	StatusCompleted          Status = "COMPLETED"
	StatusCompensating       Status = "COMPENSATING"
	StatusCompensated        Status = "COMPENSATED"
	StatusFailed             Status = "FAILED"
)

// IsTerminal 是否为终态.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCompensated || s == StatusFailed
}

// Retryable 是否允许人工重试.
func (s Status) Retryable() bool {
	return s == StatusFailed || s == StatusCompensated
}

// Valid 是否为已知状态.
func (s Status) Valid() bool {
	switch s {
	case StatusStarted, StatusPaymentProcessing, StatusPaymentCompleted,
		StatusInventoryReserving, StatusInventoryReserved, StatusCompleted,
		StatusCompensating, StatusCompensated, StatusFailed:
		return true
	}
	return false
}

// StepName 步骤名称，也用作 Saga 的 currentStep.
type StepName string

// 步骤名称.
const (
	StepCreateOrder      StepName = "CREATE_ORDER"
	StepProcessPayment   StepName = "PROCESS_PAYMENT"
	StepReserveInventory StepName = "RESERVE_INVENTORY"
	StepCompleteOrder    StepName = "COMPLETE_ORDER"

	// StepCompensate 与 StepCompleted 只作为 currentStep 使用，不对应步骤记录.
	StepCompensate StepName = "COMPENSATE"
	StepCompleted  StepName = "COMPLETED"
)

// stepOrder 步骤声明顺序.
var stepOrder = []StepName{StepCreateOrder, StepProcessPayment, StepReserveInventory, StepCompleteOrder}

// remote 是否为需要参与方执行、产生远程副作用的步骤.
func (n StepName) remote() bool {
	return n == StepProcessPayment || n == StepReserveInventory
}

// inFlightStatus 返回步骤执行中对应的 Saga 状态.
func (n StepName) inFlightStatus() Status {
	switch n {
	case StepProcessPayment:
		return StatusPaymentProcessing
	case StepReserveInventory:
		return StatusInventoryReserving
	default:
		return StatusStarted
	}
}

// StepStatus 步骤状态.
type StepStatus string

// 步骤状态常量.
const (
	StepPending     StepStatus = "PENDING"
	StepInProgress  StepStatus = "IN_PROGRESS"
	StepSuccess     StepStatus = "SUCCESS"
	StepFailed      StepStatus = "FAILED"
	StepCompensated StepStatus = "COMPENSATED"
)
