// Package form holds editable records as named string fields with
// validation rules evaluated on submit.
package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownField is returned when setting a field that was never
// registered.
var ErrUnknownField = errors.New("form: unknown field")

// Result is the outcome of Validate.
type Result struct {
	Valid  bool
	Errors map[string]string
}

// ValidationError is returned by Submit when any field fails validation.
type ValidationError struct {
	Form   string
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("form %s: invalid %s", e.Form, strings.Join(fields, ", "))
}

type field struct {
	name  string
	def   string
	value string
	rules []Rule
	err   string
}

// Form is one editable record. Forms never share state with each other.
type Form struct {
	name string

	mu     sync.RWMutex
	fields []*field
	index  map[string]*field
}

// New creates an empty form.
func New(name string) *Form {
	return &Form{name: name, index: make(map[string]*field)}
}

// Name returns the form name.
func (f *Form) Name() string { return f.name }

// Register adds a field with its default value and rules. Rules run in
// order and the first failure wins. Registering an existing name replaces
// its rules and default and resets its value.
func (f *Form) Register(name, def string, rules ...Rule) *Binding {
	f.mu.Lock()
	defer f.mu.Unlock()

	if fd, ok := f.index[name]; ok {
		fd.def = def
		fd.value = def
		fd.rules = rules
		fd.err = ""
		return &Binding{form: f, name: name}
	}

	fd := &field{name: name, def: def, value: def, rules: rules}
	f.fields = append(f.fields, fd)
	f.index[name] = fd
	return &Binding{form: f, name: name}
}

// Fields returns field names in registration order.
func (f *Form) Fields() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, len(f.fields))
	for i, fd := range f.fields {
		names[i] = fd.name
	}
	return names
}

// Set changes a field value. The field's previous error is cleared.
func (f *Form) Set(name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fd, ok := f.index[name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, f.name, name)
	}
	fd.value = value
	fd.err = ""
	return nil
}

// Value returns a field value, or "" for an unknown field.
func (f *Form) Value(name string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if fd, ok := f.index[name]; ok {
		return fd.value
	}
	return ""
}

// Values returns a copy of all field values.
func (f *Form) Values() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]string, len(f.fields))
	for _, fd := range f.fields {
		out[fd.name] = fd.value
	}
	return out
}

// Error returns the message recorded for name by the last validation.
func (f *Form) Error(name string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if fd, ok := f.index[name]; ok {
		return fd.err
	}
	return ""
}

// Errors returns all recorded field messages.
func (f *Form) Errors() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]string)
	for _, fd := range f.fields {
		if fd.err != "" {
			out[fd.name] = fd.err
		}
	}
	return out
}

// Validate runs every rule and records one message per invalid field.
func (f *Form) Validate() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

func (f *Form) validateLocked() Result {
	res := Result{Valid: true, Errors: make(map[string]string)}
	for _, fd := range f.fields {
		fd.err = ""
		for _, r := range fd.rules {
			if msg, ok := r.Check(fd.value); !ok {
				fd.err = msg
				res.Errors[fd.name] = msg
				res.Valid = false
				break
			}
		}
	}
	return res
}

// ValidateField runs the rules of a single field, for on-change feedback.
func (f *Form) ValidateField(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	fd, ok := f.index[name]
	if !ok {
		return ""
	}
	fd.err = ""
	for _, r := range fd.rules {
		if msg, ok := r.Check(fd.value); !ok {
			fd.err = msg
			break
		}
	}
	return fd.err
}

// Submit validates and, when valid, passes a snapshot of the values to fn.
// An invalid form returns a *ValidationError without calling fn.
func (f *Form) Submit(fn func(values map[string]string) error) error {
	f.mu.Lock()
	res := f.validateLocked()
	values := make(map[string]string, len(f.fields))
	for _, fd := range f.fields {
		values[fd.name] = fd.value
	}
	f.mu.Unlock()

	if !res.Valid {
		return &ValidationError{Form: f.name, Errors: res.Errors}
	}
	return fn(values)
}

// Reset restores every field to its default and clears errors.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, fd := range f.fields {
		fd.value = fd.def
		fd.err = ""
	}
}

// SetDefaults replaces the defaults of the named fields and resets them.
// Unknown names are ignored.
func (f *Form) SetDefaults(defaults map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, def := range defaults {
		if fd, ok := f.index[name]; ok {
			fd.def = def
			fd.value = def
			fd.err = ""
		}
	}
}

// Binding ties a caller to one field of a form.
type Binding struct {
	form *Form
	name string
}

func (b *Binding) Name() string { return b.name }
func (b *Binding) Value() string { return b.form.Value(b.name) }
func (b *Binding) Set(v string) error { return b.form.Set(b.name, v) }
func (b *Binding) Error() string { return b.form.Error(b.name) }
func (b *Binding) Validate() string { return b.form.ValidateField(b.name) }
