package service

import (
	"context"
	"encoding/json"

	"sims/internal/entity"
	"sims/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// auditTrail writes security events. Failures are logged, never returned.
type auditTrail struct {
	logs   repository.SecurityLogRepository
	logger logrus.FieldLogger
}

func (a auditTrail) record(
	ctx context.Context,
	userID *int64,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if a.logs == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			a.logger.WithError(err).WithField("action", action).Warn("security log metadata encode failed")
		} else {
			payload = datatypes.JSON(bytes)
		}
	}
	log := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	}
	if err := a.logs.Log(ctx, log); err != nil {
		a.logger.WithError(err).WithField("action", action).Warn("security log write failed")
	}
}
