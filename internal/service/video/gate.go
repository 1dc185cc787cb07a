package video

import (
	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
	apperrors "github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/pkg/errors"
)

// AssertStartable allows one-to-one calls only in sessions that are in progress.
// Group calls are gated by moderation permission instead.
func AssertStartable(session *domain.ConsultantSession) error {
	if session == nil || session.Status != domain.SessionStatusInProgress {
		return apperrors.PreconditionFailedError("Session must be in progress")
	}
	return nil
}
