package model

// DefaultStartDay is used whenever a company has no readable start day.
const DefaultStartDay = "Sunday"

// Company groups employees under one manager and owns the week start setting.
type Company struct {
	ID        string `json:"$id"`
	Name      string `json:"name"`
	ManagerID string `json:"managerId"`
	StartDay  string `json:"startDay,omitempty"`
}

// User is an employee or manager. The core only uses it as an aggregation
// key and display label.
type User struct {
	ID        string `json:"$id"`
	Name      string `json:"name"`
	CompanyID string `json:"companyId"`
	IsManager bool   `json:"isManager"`
}
