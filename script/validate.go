package script

import "fmt"

// ValidationError reports a structural problem found while loading a
// program. Programs that fail validation never start a session.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid program at %s: %s", e.Path, e.Reason)
}

// Validate checks the static structure of the program:
//
//   - a talk is only valid as a loop's exchange, never as a bare
//     statement (an exchange needs an active loop frame)
//   - every loop declares a talk and at least one until clause
//   - continue and break only appear inside until-blocks
//
// Validation runs once at load time; the engine assumes a validated tree.
func (p *Program) Validate() error {
	if err := validateBlock(p.Preamble, "preamble", false); err != nil {
		return err
	}
	if len(p.Loops) == 0 {
		return &ValidationError{Path: "loops", Reason: "program has no conversation loop"}
	}
	for i, loop := range p.Loops {
		if err := validateLoop(loop, fmt.Sprintf("loops[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateLoop(loop *Loop, path string) error {
	if loop.Talk == nil {
		return &ValidationError{Path: path, Reason: "loop has no talk"}
	}
	if len(loop.Untils) == 0 {
		return &ValidationError{Path: path, Reason: "loop has no until clause"}
	}
	// The loop body is preamble: it re-runs every iteration and has no
	// clause to unwind to, so control statements are rejected there too.
	if err := validateBlock(loop.Body, path+".body", false); err != nil {
		return err
	}
	for i, until := range loop.Untils {
		upath := fmt.Sprintf("%s.untils[%d]", path, i)
		if until.Trigger == "" {
			return &ValidationError{Path: upath, Reason: "until clause has an empty trigger"}
		}
		if err := validateBlock(until.Block, upath+".block", true); err != nil {
			return err
		}
	}
	return nil
}

func validateBlock(stmts []Statement, path string, inUntil bool) error {
	for i, stmt := range stmts {
		spath := fmt.Sprintf("%s[%d]", path, i)
		switch s := stmt.(type) {
		case *Talk:
			return &ValidationError{Path: spath, Reason: "talk outside a loop"}
		case *Continue:
			if !inUntil {
				return &ValidationError{Path: spath, Reason: "continue outside an until-block"}
			}
		case *Break:
			if !inUntil {
				return &ValidationError{Path: spath, Reason: "break outside an until-block"}
			}
		case *Loop:
			if !inUntil {
				return &ValidationError{Path: spath, Reason: "nested loop outside an until-block"}
			}
			if err := validateLoop(s, spath); err != nil {
				return err
			}
		case *If:
			if err := validateBlock(s.Then, spath+".then", inUntil); err != nil {
				return err
			}
			if err := validateBlock(s.Else, spath+".else", inUntil); err != nil {
				return err
			}
		case *Extract:
			if s.Into == "" {
				return &ValidationError{Path: spath, Reason: "extract has no into binding"}
			}
		case *Summarize:
			if s.Into == "" {
				return &ValidationError{Path: spath, Reason: "summarize has no into binding"}
			}
		}
	}
	return nil
}
