package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/krasl809/tradedesk/internal/auth"
	"github.com/krasl809/tradedesk/internal/ledger"
	"github.com/krasl809/tradedesk/internal/model"
	"github.com/krasl809/tradedesk/internal/pricing"
	"github.com/krasl809/tradedesk/internal/repository"
)

// Repository is the persistence surface the service needs. Implemented
// by repository.ContractRepository; faked in tests.
type Repository interface {
	GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error)
	CreateContract(ctx context.Context, contract model.Contract) (*model.Contract, error)
	UpdateContract(ctx context.Context, contract model.Contract, expectedVersion int64) (int64, time.Time, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.ContractStatus, expectedVersion int64) (int64, error)
	ListTransactions(ctx context.Context, contractID uuid.UUID) ([]model.FinancialTransaction, error)
	ListPartialPricing(ctx context.Context, contractID uuid.UUID) ([]model.PartialPricing, error)
	InsertPartialPricing(ctx context.Context, contractID uuid.UUID, fixation model.PartialPricing, expectedVersion int64) (int64, error)
}

type ExcelGenerator interface {
	Generate(contract model.Contract, statement ledger.Statement) ([]byte, error)
}

type PDFGenerator interface {
	Generate(contract model.Contract, statement ledger.Statement) ([]byte, error)
}

type ContractService struct {
	repo  Repository
	excel ExcelGenerator
	pdf   PDFGenerator
	log   zerolog.Logger
}

func NewContractService(repo Repository, excel ExcelGenerator, pdf PDFGenerator, log zerolog.Logger) *ContractService {
	return &ContractService{repo: repo, excel: excel, pdf: pdf, log: log}
}

type CreateContractInput struct {
	Number    string
	Direction model.Direction
	SellerID  *uuid.UUID
	BuyerID   *uuid.UUID
	Incoterm  string
	Currency  string
	Items     []model.ContractItem
	Principal auth.Principal
}

func (s *ContractService) CreateContract(ctx context.Context, input CreateContractInput) (*model.Contract, error) {
	if input.Principal.ReadOnly() {
		return nil, ErrPermissionDenied
	}
	if input.Number == "" {
		return nil, fmt.Errorf("%w: contract_number is required", ErrInvalidInput)
	}
	if input.Direction != model.DirectionExport && input.Direction != model.DirectionImport {
		return nil, fmt.Errorf("%w: invalid direction", ErrInvalidInput)
	}

	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	contract := model.Contract{
		Number:    input.Number,
		Status:    model.ContractStatusDraft,
		Direction: input.Direction,
		SellerID:  input.SellerID,
		BuyerID:   input.BuyerID,
		Incoterm:  input.Incoterm,
		Currency:  currency,
		Items:     input.Items,
	}
	saved, err := s.repo.CreateContract(ctx, contract)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("contract_id", saved.ID.String()).Str("number", saved.Number).Msg("contract created")
	return saved, nil
}

// GetContract returns the contract with its items and current version
// token.
func (s *ContractService) GetContract(ctx context.Context, id uuid.UUID) (*model.Contract, error) {
	contract, err := s.repo.GetContract(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return contract, nil
}

type UpdateContractInput struct {
	ID        uuid.UUID
	Version   int64
	SellerID  *uuid.UUID
	BuyerID   *uuid.UUID
	Incoterm  string
	Currency  string
	Items     []model.ContractItem
	Principal auth.Principal
}

type UpdateResult struct {
	Version      int64
	ModifiedDate time.Time
}

// UpdateContract applies the full mutable field set under the client's
// version token. A stale token maps to ErrVersionConflict without any
// server-side mutation.
func (s *ContractService) UpdateContract(ctx context.Context, input UpdateContractInput) (*UpdateResult, error) {
	if input.Principal.ReadOnly() {
		return nil, ErrPermissionDenied
	}
	if input.Version <= 0 {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidInput)
	}

	current, err := s.repo.GetContract(ctx, input.ID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !current.Editable() {
		return nil, fmt.Errorf("%w: status %s", ErrNotEditable, current.Status)
	}

	contract := model.Contract{
		ID:       input.ID,
		SellerID: input.SellerID,
		BuyerID:  input.BuyerID,
		Incoterm: input.Incoterm,
		Currency: input.Currency,
		Items:    input.Items,
	}
	version, modified, err := s.repo.UpdateContract(ctx, contract, input.Version)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return &UpdateResult{Version: version, ModifiedDate: modified}, nil
}

type PartialPriceInput struct {
	ContractID  uuid.UUID
	ItemID      uuid.UUID
	QtyPriced   float64
	MarketPrice float64
	PricingDate time.Time
	Reference   string
	Version     int64
	Principal   auth.Principal
}

type PartialPriceResult struct {
	Fixation model.PartialPricing
	Version  int64
}

// AddPartialPricing validates the fixation against the item's remaining
// quantity before anything is written.
func (s *ContractService) AddPartialPricing(ctx context.Context, input PartialPriceInput) (*PartialPriceResult, error) {
	if input.Principal.ReadOnly() {
		return nil, ErrPermissionDenied
	}

	contract, err := s.repo.GetContract(ctx, input.ContractID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	var item *model.ContractItem
	for i := range contract.Items {
		if contract.Items[i].ID == input.ItemID {
			item = &contract.Items[i]
			break
		}
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s not on contract", ErrInvalidInput, input.ItemID)
	}

	existing, err := s.repo.ListPartialPricing(ctx, input.ContractID)
	if err != nil {
		return nil, err
	}

	fixation, err := pricing.Allocate(*item, existing, input.QtyPriced, input.MarketPrice, input.PricingDate)
	if err != nil {
		return nil, err
	}
	fixation.Reference = input.Reference

	version, err := s.repo.InsertPartialPricing(ctx, input.ContractID, fixation, input.Version)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return &PartialPriceResult{Fixation: fixation, Version: version}, nil
}

// ApprovePricing confirms the whole document: every item must be fully
// priced, then the contract moves to POSTED behind the version check.
func (s *ContractService) ApprovePricing(ctx context.Context, contractID uuid.UUID, version int64, principal auth.Principal) (int64, error) {
	if principal.ReadOnly() {
		return 0, ErrPermissionDenied
	}

	contract, err := s.repo.GetContract(ctx, contractID)
	if err != nil {
		return 0, mapRepoError(err)
	}
	if contract.Status != model.ContractStatusPricingPending {
		return 0, fmt.Errorf("%w: status %s", ErrNotEditable, contract.Status)
	}

	fixations, err := s.repo.ListPartialPricing(ctx, contractID)
	if err != nil {
		return 0, err
	}
	marketItems := make([]model.ContractItem, 0, len(contract.Items))
	for _, item := range contract.Items {
		if item.PricingMode == model.PricingModeMarket {
			marketItems = append(marketItems, item)
		}
	}
	if err := pricing.ConfirmPricing(marketItems, fixations); err != nil {
		return 0, err
	}

	newVersion, err := s.repo.UpdateStatus(ctx, contractID, model.ContractStatusPosted, version)
	if err != nil {
		return 0, mapRepoError(err)
	}
	s.log.Info().Str("contract_id", contractID.String()).Msg("pricing approved")
	return newVersion, nil
}

// Statement derives the statement of account. For import contracts the
// contract's total value is offered as the synthetic invoice candidate;
// the ledger decides whether it is shown.
func (s *ContractService) Statement(ctx context.Context, contractID uuid.UUID) (*model.Contract, *ledger.Statement, error) {
	contract, err := s.repo.GetContract(ctx, contractID)
	if err != nil {
		return nil, nil, mapRepoError(err)
	}
	txns, err := s.repo.ListTransactions(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}

	var synthetic *ledger.SyntheticInvoice
	if contract.Direction == model.DirectionImport {
		synthetic = &ledger.SyntheticInvoice{
			Amount:    contract.TotalValue(),
			Date:      contract.CreatedAt,
			Reference: "contract value",
		}
	}

	statement := ledger.Compute(contract.Direction, txns, synthetic)
	return contract, &statement, nil
}

type ExportResult struct {
	FileName string
	Content  []byte
}

func (s *ContractService) ExportStatementExcel(ctx context.Context, contractID uuid.UUID) (*ExportResult, error) {
	contract, statement, err := s.Statement(ctx, contractID)
	if err != nil {
		return nil, err
	}
	content, err := s.excel.Generate(*contract, *statement)
	if err != nil {
		return nil, err
	}
	return &ExportResult{FileName: statementFileName(*contract, "xlsx"), Content: content}, nil
}

func (s *ContractService) ExportStatementPDF(ctx context.Context, contractID uuid.UUID) (*ExportResult, error) {
	contract, statement, err := s.Statement(ctx, contractID)
	if err != nil {
		return nil, err
	}
	content, err := s.pdf.Generate(*contract, *statement)
	if err != nil {
		return nil, err
	}
	return &ExportResult{FileName: statementFileName(*contract, "pdf"), Content: content}, nil
}

func statementFileName(contract model.Contract, ext string) string {
	number := sanitizeFileName(contract.Number)
	if number == "" {
		number = contract.ID.String()
	}
	return fmt.Sprintf("statement-%s-%s.%s", strings.ToLower(string(contract.Direction)), number, ext)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}

func mapRepoError(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStaleVersion):
		return ErrVersionConflict
	default:
		return err
	}
}
