package mapper

import (
	"encoding/json"
	"time"

	"subguard-be/internal/entity"
	"subguard-be/internal/model"

	"gorm.io/datatypes"
)

type CancellationMapper struct{}

func NewCancellationMapper() *CancellationMapper {
	return &CancellationMapper{}
}

func (m *CancellationMapper) RequestToEntity(r *model.CancellationRequest) *entity.CancellationRequest {
	if r == nil {
		return nil
	}

	var chain []entity.CancellationMethod
	if len(r.FallbackChain) > 0 {
		var raw []string
		if err := json.Unmarshal(r.FallbackChain, &raw); err == nil {
			for _, s := range raw {
				chain = append(chain, entity.CancellationMethod(s))
			}
		}
	}

	var lastError *entity.ErrorDetail
	if r.ErrorCode != "" || r.ErrorMessage != "" {
		lastError = &entity.ErrorDetail{Code: r.ErrorCode, Message: r.ErrorMessage}
	}

	var retryLink *entity.RetryLink
	if r.RetriedFromId != nil {
		retryLink = &entity.RetryLink{RetriedFromId: *r.RetriedFromId}
	}

	return &entity.CancellationRequest{
		Id:               r.Id,
		OrchestrationId:  r.OrchestrationId,
		SubscriptionId:   r.SubscriptionId,
		UserId:           r.UserId,
		Method:           entity.CancellationMethod(r.Method),
		FallbackChain:    chain,
		Priority:         entity.RequestPriority(r.Priority),
		Attempts:         r.Attempts,
		MaxAttempts:      r.MaxAttempts,
		Status:           entity.CancellationStatus(r.Status),
		Notes:            r.Notes,
		LastError:        lastError,
		RetryLink:        retryLink,
		ConfirmationCode: r.ConfirmationCode,
		EffectiveDate:    r.EffectiveDate,
		RefundAmount:     r.RefundAmount,
		CreatedAt:        r.CreatedAt,
		LastAttemptAt:    r.LastAttemptAt,
		CompletedAt:      r.CompletedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (m *CancellationMapper) RequestToModel(r *entity.CancellationRequest) *model.CancellationRequest {
	if r == nil {
		return nil
	}

	var chainJSON datatypes.JSON
	if r.FallbackChain != nil {
		raw := make([]string, len(r.FallbackChain))
		for i, method := range r.FallbackChain {
			raw[i] = string(method)
		}
		if b, err := json.Marshal(raw); err == nil {
			chainJSON = datatypes.JSON(b)
		}
	}

	out := &model.CancellationRequest{
		Id:               r.Id,
		OrchestrationId:  r.OrchestrationId,
		SubscriptionId:   r.SubscriptionId,
		UserId:           r.UserId,
		Method:           string(r.Method),
		FallbackChain:    chainJSON,
		Priority:         string(r.Priority),
		Attempts:         r.Attempts,
		MaxAttempts:      r.MaxAttempts,
		Status:           string(r.Status),
		Notes:            r.Notes,
		ConfirmationCode: r.ConfirmationCode,
		EffectiveDate:    r.EffectiveDate,
		RefundAmount:     r.RefundAmount,
		CreatedAt:        r.CreatedAt,
		LastAttemptAt:    r.LastAttemptAt,
		CompletedAt:      r.CompletedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.LastError != nil {
		out.ErrorCode = r.LastError.Code
		out.ErrorMessage = r.LastError.Message
	}
	if r.RetryLink != nil {
		id := r.RetryLink.RetriedFromId
		out.RetriedFromId = &id
	}
	return out
}

func (m *CancellationMapper) LogToEntity(l *model.CancellationLog) *entity.CancellationLog {
	if l == nil {
		return nil
	}
	var meta map[string]interface{}
	if len(l.Metadata) > 0 {
		_ = json.Unmarshal(l.Metadata, &meta)
	}
	return &entity.CancellationLog{
		Id:            l.Id,
		RequestId:     l.RequestId,
		Action:        l.Action,
		Status:        entity.CancellationStatus(l.Status),
		Message:       l.Message,
		Metadata:      meta,
		SincePrevious: time.Duration(l.SincePrevious),
		CreatedAt:     l.CreatedAt,
	}
}

func (m *CancellationMapper) LogToModel(l *entity.CancellationLog) *model.CancellationLog {
	if l == nil {
		return nil
	}
	var metaJSON datatypes.JSON
	if l.Metadata != nil {
		if b, err := json.Marshal(l.Metadata); err == nil {
			metaJSON = datatypes.JSON(b)
		}
	}
	return &model.CancellationLog{
		Id:            l.Id,
		RequestId:     l.RequestId,
		Action:        l.Action,
		Status:        string(l.Status),
		Message:       l.Message,
		Metadata:      metaJSON,
		SincePrevious: int64(l.SincePrevious),
		CreatedAt:     l.CreatedAt,
	}
}
