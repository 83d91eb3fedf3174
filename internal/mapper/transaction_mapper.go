package mapper

import (
	"subguard-be/internal/entity"
	"subguard-be/internal/model"
)

type TransactionMapper struct{}

func NewTransactionMapper() *TransactionMapper {
	return &TransactionMapper{}
}

func (m *TransactionMapper) ToEntity(t *model.Transaction) *entity.Transaction {
	if t == nil {
		return nil
	}
	return &entity.Transaction{
		Id:           t.Id,
		UserId:       t.UserId,
		AccountId:    t.AccountId,
		MerchantName: t.MerchantName,
		Amount:       t.Amount,
		Currency:     t.Currency,
		Date:         t.Date,
		Pending:      t.Pending,
	}
}
