package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"encore.app/billing/models"
	"encore.dev/beta/errs"
	"encore.dev/rlog"
)

const problemType = "about:blank"

// toProblem classifies err and builds the problem document returned to the caller.
// Unclassified errors never expose their message.
func toProblem(err error) (int, models.ProblemResponse) {
	var (
		verr     *models.ValidationError
		conflict *models.ConflictError
		apiErr   *errs.Error
	)
	switch {
	case errors.As(err, &verr):
		apiErr = &errs.Error{Code: errs.InvalidArgument, Message: "Validation failed"}
	case errors.As(err, &conflict):
		apiErr = &errs.Error{Code: errs.AlreadyExists, Message: conflict.Error()}
	case models.IsConflict(err):
		apiErr = &errs.Error{Code: errs.AlreadyExists, Message: "Bill number already exists."}
	default:
		apiErr = &errs.Error{Code: errs.Internal, Message: models.MessageUnexpected}
	}

	status := apiErr.Code.HTTPStatus()
	return status, models.ProblemResponse{
		Type:   problemType,
		Title:  apiErr.Message,
		Status: status,
		Errors: verr,
	}
}

func writeError(w http.ResponseWriter, log rlog.Ctx, err error) {
	status, problem := toProblem(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err)
	} else {
		log.Warn("request rejected", "status", status, "error", err)
	}
	writeProblem(w, problem)
}

func writeProblem(w http.ResponseWriter, problem models.ProblemResponse) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func recoverPanic(w http.ResponseWriter, log rlog.Ctx) {
	if rec := recover(); rec != nil {
		log.Error("panic while handling request", "panic", fmt.Sprint(rec))
		_, problem := toProblem(fmt.Errorf("panic: %v", rec))
		writeProblem(w, problem)
	}
}
