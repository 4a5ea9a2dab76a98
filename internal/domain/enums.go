package domain

// Status is the lifecycle state shared by projects and tasks.
type Status string

const (
	StatusInactive  Status = "Inactive"
	StatusPending   Status = "Pending"
	StatusActive    Status = "Active"
	StatusReviewing Status = "Reviewing"
	StatusCompleted Status = "Completed"
)

// statusOrder is the canonical ordering used when a set of statuses is rendered
// or compared (phase status sets).
var statusOrder = map[Status]int{
	StatusInactive:  0,
	StatusPending:   1,
	StatusActive:    2,
	StatusReviewing: 3,
	StatusCompleted: 4,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Rank returns the canonical position of s. Unknown statuses sort last.
func (s Status) Rank() int {
	if r, ok := statusOrder[s]; ok {
		return r
	}
	return len(statusOrder)
}

type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleSupervisor Role = "Supervisor"
	RoleEmployee   Role = "Employee"
)

type RequestType string

const (
	RequestTaskAssignment   RequestType = "TaskAssignment"
	RequestMaterial         RequestType = "MaterialRequest"
	RequestPayment          RequestType = "PaymentRequest"
	RequestTaskCompletion   RequestType = "TaskCompletion"
	RequestJoinOrganisation RequestType = "JoinOrganisation"
	RequestJoinProject      RequestType = "JoinProject"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "Pending"
	RequestApproved RequestStatus = "Approved"
	RequestRejected RequestStatus = "Rejected"
)
