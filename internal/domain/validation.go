package domain

import "github.com/citizenhub/complaint-service/pkg/util/errorutil"

func validationResult(message string, problems map[string]any) error {
	if len(problems) == 0 {
		return nil
	}
	return errorutil.NewValidationError(message, problems)
}
