package ledgerhttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/veraledger/veraledger/internal/ledger"
	"github.com/veraledger/veraledger/internal/platform/httpx"
)

// BalanceReader loads stored monthly balance rows.
type BalanceReader interface {
	MonthlyBalances(ctx context.Context, month ledger.MonthKey) ([]ledger.MonthlyBalanceRow, error)
}

// RebuildEnqueuer schedules a background balance rebuild.
type RebuildEnqueuer interface {
	EnqueueRebuild(ctx context.Context, requestedBy string) (string, error)
}

// Handler serves the monthly balance report and the rebuild trigger.
type Handler struct {
	logger   *slog.Logger
	reader   BalanceReader
	enqueuer RebuildEnqueuer
	window   ledger.Window
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, reader BalanceReader, enqueuer RebuildEnqueuer, window ledger.Window) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		reader:   reader,
		enqueuer: enqueuer,
		window:   window,
		validate: validator.New(),
	}
}

type balanceRow struct {
	Account     string  `json:"account"`
	MonthKey    string  `json:"month_key"`
	Balance     float64 `json:"balance"`
	Description string  `json:"description,omitempty"`
	AccountType string  `json:"account_type,omitempty"`
}

type balancesResponse struct {
	Month string       `json:"month"`
	Rows  []balanceRow `json:"rows"`
}

func (h *Handler) handleMonthlyBalances(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("month")
	month, err := ledger.ParseMonthKey(raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "month must be a YYYY-MM key")
		return
	}
	if !h.window.Contains(month) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed",
			fmt.Sprintf("month %s is outside the reporting window", month))
		return
	}

	rows, err := h.reader.MonthlyBalances(r.Context(), month)
	if err != nil {
		h.logger.Error("load monthly balances", slog.String("month", raw), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := balancesResponse{Month: raw, Rows: make([]balanceRow, 0, len(rows))}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, balanceRow{
			Account:     row.Account,
			MonthKey:    string(row.MonthKey),
			Balance:     row.Balance,
			Description: row.Description,
			AccountType: row.AccountType,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type rebuildRequest struct {
	RequestedBy string `json:"requested_by" validate:"omitempty,max=128"`
}

type rebuildResponse struct {
	TaskID string `json:"task_id"`
}

func (h *Handler) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}

	taskID, err := h.enqueuer.EnqueueRebuild(r.Context(), req.RequestedBy)
	if err != nil {
		h.logger.Error("enqueue rebuild", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "could not schedule rebuild")
		return
	}
	h.logger.Info("rebuild scheduled",
		slog.String("task_id", taskID), slog.String("requested_by", req.RequestedBy))
	httpx.JSON(w, http.StatusAccepted, rebuildResponse{TaskID: taskID})
}
