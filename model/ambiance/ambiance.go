package ambiance

// Well-known setup abstraction keys.
const (
	AccountIDKey = "accountId"
	OrgIDKey     = "orgIdentifier"
	ProjectIDKey = "projectIdentifier"
)

// Level identifies one entry of the ambiance level stack; the innermost level
// describes the node currently being facilitated.
type Level struct {
	RuntimeID  string `json:"runtimeId" yaml:"runtimeId"`
	Identifier string `json:"identifier" yaml:"identifier"`
	StepType   string `json:"stepType,omitempty" yaml:"stepType,omitempty"`
	Group      string `json:"group,omitempty" yaml:"group,omitempty"`
}

// Ambiance is the immutable execution context threaded through every
// facilitation operation.  It is never mutated in place - descending into a
// child node produces a new value via PushLevel.
type Ambiance struct {
	PlanExecutionID   string            `json:"planExecutionId" yaml:"planExecutionId"`
	Levels            []Level           `json:"levels,omitempty" yaml:"levels,omitempty"`
	SetupAbstractions map[string]string `json:"setupAbstractions,omitempty" yaml:"setupAbstractions,omitempty"`
}

// New creates an ambiance for a plan execution.
func New(planExecutionID string, setupAbstractions map[string]string) *Ambiance {
	abstractions := make(map[string]string, len(setupAbstractions))
	for k, v := range setupAbstractions {
		abstractions[k] = v
	}
	return &Ambiance{
		PlanExecutionID:   planExecutionID,
		SetupAbstractions: abstractions,
	}
}

// PushLevel returns a copy of the ambiance extended with the supplied level.
// The receiver is left untouched.
func (a *Ambiance) PushLevel(level Level) *Ambiance {
	clone := a.Clone()
	clone.Levels = append(clone.Levels, level)
	return clone
}

// CurrentLevel returns the innermost level or nil for an empty stack.
func (a *Ambiance) CurrentLevel() *Level {
	if a == nil || len(a.Levels) == 0 {
		return nil
	}
	return &a.Levels[len(a.Levels)-1]
}

// CurrentRuntimeID returns the runtime id of the innermost level.
func (a *Ambiance) CurrentRuntimeID() string {
	if level := a.CurrentLevel(); level != nil {
		return level.RuntimeID
	}
	return ""
}

// Abstraction returns the setup abstraction registered under key.
func (a *Ambiance) Abstraction(key string) string {
	if a == nil {
		return ""
	}
	return a.SetupAbstractions[key]
}

// AccountID returns the account setup abstraction.
func (a *Ambiance) AccountID() string { return a.Abstraction(AccountIDKey) }

// OrgID returns the organisation setup abstraction.
func (a *Ambiance) OrgID() string { return a.Abstraction(OrgIDKey) }

// ProjectID returns the project setup abstraction.
func (a *Ambiance) ProjectID() string { return a.Abstraction(ProjectIDKey) }

// AsState exposes the ambiance as an expression-evaluation state map; level
// identifiers are addressable by position and the setup abstractions by name.
func (a *Ambiance) AsState() map[string]interface{} {
	state := map[string]interface{}{
		"planExecutionId": a.PlanExecutionID,
	}
	for k, v := range a.SetupAbstractions {
		state[k] = v
	}
	if level := a.CurrentLevel(); level != nil {
		state["identifier"] = level.Identifier
		state["stepType"] = level.StepType
		state["group"] = level.Group
	}
	return state
}

// Clone creates a deep copy of the ambiance so that the caller can extend it
// without affecting the original instance.
func (a *Ambiance) Clone() *Ambiance {
	if a == nil {
		return nil
	}
	clone := &Ambiance{PlanExecutionID: a.PlanExecutionID}
	if a.Levels != nil {
		clone.Levels = append([]Level(nil), a.Levels...)
	}
	if a.SetupAbstractions != nil {
		clone.SetupAbstractions = make(map[string]string, len(a.SetupAbstractions))
		for k, v := range a.SetupAbstractions {
			clone.SetupAbstractions[k] = v
		}
	}
	return clone
}
