package domain

// Department is externally-owned reference data; chats refer to it by id.
type Department struct {
	ID   string `mapstructure:"id"   json:"id"`
	Name string `mapstructure:"name" json:"name"`
}

// WorkflowStep is one checklist item of a workflow definition. A step
// with a non-empty TransferTo is a transfer step: completing it moves the
// chat to that department as part of the same transition.
type WorkflowStep struct {
	ID         string `mapstructure:"id"          json:"id"`
	Title      string `mapstructure:"title"       json:"title"`
	TransferTo string `mapstructure:"transfer_to" json:"transfer_to,omitempty"`
}

// Workflow is an externally-defined guided checklist.
type Workflow struct {
	ID    string         `mapstructure:"id"    json:"id"`
	Name  string         `mapstructure:"name"  json:"name"`
	Steps []WorkflowStep `mapstructure:"steps" json:"steps"`
}

// Step returns the step with the given id.
func (w Workflow) Step(stepID string) (WorkflowStep, bool) {
	for _, s := range w.Steps {
		if s.ID == stepID {
			return s, true
		}
	}
	return WorkflowStep{}, false
}

// Agent is a human operator of the inbox.
type Agent struct {
	ID           string `mapstructure:"id"            json:"id"`
	Name         string `mapstructure:"name"          json:"name"`
	DepartmentID string `mapstructure:"department_id" json:"department_id,omitempty"`
	Admin        bool   `mapstructure:"admin"         json:"admin"`
}

// DepartmentDirectory looks up department reference data.
type DepartmentDirectory interface {
	DepartmentByID(id string) (Department, bool)
	Departments() []Department
}

// WorkflowDirectory looks up workflow definitions.
type WorkflowDirectory interface {
	WorkflowByID(id string) (Workflow, bool)
}

// AgentDirectory looks up inbox agents.
type AgentDirectory interface {
	AgentByID(id string) (Agent, bool)
}

// Directory is an in-memory implementation of the reference-data lookups,
// loaded once at startup. The CRUD surfaces that maintain this data live
// outside this service.
type Directory struct {
	departments map[string]Department
	ordered     []Department
	workflows   map[string]Workflow
	agents      map[string]Agent
}

// NewDirectory builds a directory from already-loaded reference data.
func NewDirectory(departments []Department, workflows []Workflow, agents []Agent) *Directory {
	d := &Directory{
		departments: make(map[string]Department, len(departments)),
		ordered:     append([]Department(nil), departments...),
		workflows:   make(map[string]Workflow, len(workflows)),
		agents:      make(map[string]Agent, len(agents)),
	}
	for _, dept := range departments {
		d.departments[dept.ID] = dept
	}
	for _, wf := range workflows {
		d.workflows[wf.ID] = wf
	}
	for _, a := range agents {
		d.agents[a.ID] = a
	}
	return d
}

// DepartmentByID returns the department with the given id.
func (d *Directory) DepartmentByID(id string) (Department, bool) {
	dept, ok := d.departments[id]
	return dept, ok
}

// Departments returns all departments in configuration order.
func (d *Directory) Departments() []Department {
	return append([]Department(nil), d.ordered...)
}

// WorkflowByID returns the workflow definition with the given id.
func (d *Directory) WorkflowByID(id string) (Workflow, bool) {
	wf, ok := d.workflows[id]
	return wf, ok
}

// AgentByID returns the agent with the given id.
func (d *Directory) AgentByID(id string) (Agent, bool) {
	a, ok := d.agents[id]
	return a, ok
}
