package config

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/Nikolaikolya/deploy-commander/pkg/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationIssue describes one problem found in a deployment definition.
type ValidationIssue struct {
	Field   string
	Message string
}

// Verify checks that the named deployment is runnable: its name is unique in
// the file, it has events, every event has commands, event names are unique
// and environment entries are KEY=VALUE.
func (c *Config) Verify(name string) error {
	d, err := c.FindDeployment(name)
	if err != nil {
		return err
	}

	issues := d.Validate()
	if n := c.countDeployments(name); n > 1 {
		issues = append(issues, ValidationIssue{
			Field:   "name",
			Message: fmt.Sprintf("%d deployments are named %q", n, name),
		})
	}
	if len(issues) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		msgs = append(msgs, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return errors.ValidationError(
		fmt.Sprintf("deployment %q is invalid: %s", name, strings.Join(msgs, "; ")),
		map[string]interface{}{"deployment": name, "issues": issues},
	)
}

func (c *Config) countDeployments(name string) int {
	n := 0
	for _, d := range c.Deployments {
		if d != nil && d.Name == name {
			n++
		}
	}
	return n
}

// Validate returns every issue found in the deployment.
func (d *Deployment) Validate() []ValidationIssue {
	var issues []ValidationIssue

	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			for _, fe := range verrs {
				issues = append(issues, ValidationIssue{
					Field:   fieldPath(fe),
					Message: describeTag(fe),
				})
			}
		} else {
			issues = append(issues, ValidationIssue{Field: d.Name, Message: err.Error()})
		}
	}

	seen := make(map[string]bool)
	for _, e := range d.Events {
		if e == nil {
			continue
		}
		if seen[e.Name] {
			issues = append(issues, ValidationIssue{
				Field:   "events." + e.Name,
				Message: "duplicate event name",
			})
		}
		seen[e.Name] = true
	}

	for i, entry := range d.Environment {
		if k, _, ok := strings.Cut(entry, "="); !ok || strings.TrimSpace(k) == "" {
			issues = append(issues, ValidationIssue{
				Field:   fmt.Sprintf("environment[%d]", i),
				Message: fmt.Sprintf("%q is not in KEY=VALUE form", entry),
			})
		}
	}

	return issues
}

// fieldPath strips the root type name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
