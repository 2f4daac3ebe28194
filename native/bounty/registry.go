package bounty

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// displayText folds compatibility forms so visually identical labels are
// stored identically.
func displayText(s string) string {
	return norm.NFKC.String(s)
}

func validateProgramFields(name, description, image string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if err := checkLength("name", name, MaxNameLength); err != nil {
		return err
	}
	if err := checkLength("description", description, MaxDescriptionLength); err != nil {
		return err
	}
	return checkLength("image", image, MaxImageLength)
}

// CreateProgram registers a program owned by the sender. Each identity may own
// at most one program.
func (c *Context) CreateProgram(name, description, image string) (*Outcome, error) {
	name = displayText(name)
	if isZero(c.Sender) {
		return nil, ErrNullIdentity
	}
	if err := validateProgramFields(name, description, image); err != nil {
		return nil, err
	}
	if _, ok, err := c.Ledger.BountyProgram(c.Sender); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrProgramExists
	}
	program := &Program{
		Owner:       c.Sender,
		Name:        name,
		Description: description,
		Image:       image,
	}
	out := &Outcome{Program: program.Clone()}
	out.add(PutProgram{Program: *program})
	out.emit(newProgramEvent(EventTypeProgramCreated, program, c.Sender))
	return out, nil
}

// EditProgram overwrites the sender's program text fields. Verification
// status is preserved.
func (c *Context) EditProgram(name, description, image string) (*Outcome, error) {
	name = displayText(name)
	if err := validateProgramFields(name, description, image); err != nil {
		return nil, err
	}
	program, err := c.program(c.Sender)
	if err != nil {
		return nil, err
	}
	program.Name = name
	program.Description = description
	program.Image = image
	out := &Outcome{Program: program.Clone()}
	out.add(PutProgram{Program: *program})
	out.emit(newProgramEvent(EventTypeProgramEdited, program, c.Sender))
	return out, nil
}

// VerifyProgram marks target's program as verified. Manager only.
func (c *Context) VerifyProgram(target [20]byte) (*Outcome, error) {
	if err := c.requireManager(); err != nil {
		return nil, err
	}
	program, err := c.program(target)
	if err != nil {
		return nil, err
	}
	program.Verified = true
	out := &Outcome{Program: program.Clone()}
	out.add(PutProgram{Program: *program})
	out.emit(newProgramEvent(EventTypeProgramVerified, program, c.Sender))
	return out, nil
}

// DeleteProgram removes the sender's program.
func (c *Context) DeleteProgram() (*Outcome, error) {
	return c.deleteProgram(c.Sender)
}

// DeleteProgramAdmin removes any identity's program. Manager only.
func (c *Context) DeleteProgramAdmin(target [20]byte) (*Outcome, error) {
	if err := c.requireManager(); err != nil {
		return nil, err
	}
	return c.deleteProgram(target)
}

func (c *Context) deleteProgram(owner [20]byte) (*Outcome, error) {
	program, err := c.program(owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, addr(owner))
	}
	out := &Outcome{Program: program}
	out.add(DeleteProgram{Owner: owner})
	out.emit(NewProgramDeletedEvent(owner, c.Sender))
	return out, nil
}
