package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"folio"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// fail maps domain errors onto HTTP statuses: validation 400, unknown
// ids 404, state conflicts 409, upstream price failures 502.
func (s *Server) fail(c *gin.Context, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, folio.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, folio.ErrAlreadyReversed):
		status, code = http.StatusConflict, "already_reversed"
	case errors.Is(err, folio.ErrInsufficientQuantity):
		status, code = http.StatusConflict, "insufficient_quantity"
	case errors.Is(err, folio.ErrInsufficientBalance):
		status, code = http.StatusConflict, "insufficient_balance"
	case errors.Is(err, folio.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, folio.ErrPriceUnavailable):
		status, code = http.StatusBadGateway, "price_unavailable"
	default:
		status, code = http.StatusInternalServerError, "internal"
		s.Logger.Error("handler", zap.Error(err))
	}
	c.JSON(status, apiError{Code: code, Message: err.Error()})
}

// at parses the optional RFC3339 "at" parameter, defaulting to now.
func at(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Server) getHoldings(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	holdings := make([]folio.Holding, 0)
	for h := range s.ledger.Holdings() {
		holdings = append(holdings, h)
	}
	c.JSON(http.StatusOK, gin.H{"currency": s.ledger.Currency(), "holdings": holdings})
}

func (s *Server) getValuation(c *gin.Context) {
	asOf, err := at(c, "asOf")
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.ledger.Valuation(c.Request.Context(), s.feed, asOf))
}

func (s *Server) getSeries(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: "from: " + err.Error()})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: "to: " + err.Error()})
		return
	}
	samples, err := strconv.Atoi(c.DefaultQuery("samples", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: "samples: " + err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	points, err := s.ledger.EquitySeries(c.Request.Context(), s.feed, from, to, samples)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": s.ledger.Currency(), "points": points})
}

func (s *Server) getTransactions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := make([]folio.Transaction, 0, s.ledger.Len())
	for tx := range s.ledger.Transactions() {
		txs = append(txs, tx)
	}
	c.JSON(http.StatusOK, gin.H{"currency": s.ledger.Currency(), "transactions": txs})
}

type buyRequest struct {
	Instrument folio.Instrument `json:"instrument"`
	Quantity   float64          `json:"quantity"`
	Price      float64          `json:"price"`
	At         time.Time        `json:"at"`
}

func (s *Server) postBuy(c *gin.Context) {
	var req buyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: err.Error()})
		return
	}
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.ledger.Buy(req.At, req.Instrument, folio.Q(req.Quantity), folio.M(req.Price, s.ledger.Currency()))
	countMutation("buy", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

type sellRequest struct {
	InstrumentID string    `json:"instrumentId"`
	Quantity     float64   `json:"quantity"`
	Price        float64   `json:"price"`
	At           time.Time `json:"at"`
}

func (s *Server) postSell(c *gin.Context) {
	var req sellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: err.Error()})
		return
	}
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.ledger.Sell(req.At, req.InstrumentID, folio.Q(req.Quantity), folio.M(req.Price, s.ledger.Currency()))
	countMutation("sell", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

type depositRequest struct {
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Rate     float64   `json:"rate"`
	At       time.Time `json:"at"`
}

func (s *Server) postDeposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: err.Error()})
		return
	}
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}
	if req.Rate == 0 {
		req.Rate = 1
	}
	if req.Currency == "" {
		req.Currency = s.ledger.Currency()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.ledger.Deposit(req.At, folio.M(req.Amount, req.Currency), decimal.NewFromFloat(req.Rate))
	countMutation("deposit", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *Server) postReverse(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.ledger.Reverse(c.Param("id"))
	countMutation("reverse", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// getPrice proxies the live price of a registered instrument, reshaped
// to the dashboard's format.
func (s *Server) getPrice(c *gin.Context) {
	s.mu.Lock()
	in, ok := s.ledger.Instrument(c.Param("instrument"))
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, apiError{Code: "not_found", Message: "unknown instrument"})
		return
	}

	q, err := s.feed.Last(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instrument": in.ID, "symbol": in.Symbol, "price": q.Price, "at": q.At})
}

func (s *Server) getHistory(c *gin.Context) {
	s.mu.Lock()
	in, ok := s.ledger.Instrument(c.Param("instrument"))
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, apiError{Code: "not_found", Message: "unknown instrument"})
		return
	}
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: "from: " + err.Error()})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: "to: " + err.Error()})
		return
	}

	points, err := s.feed.History(c.Request.Context(), in, from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instrument": in.ID, "points": points})
}

func (s *Server) getExport(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := folio.Export(&buf, s.ledger); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="folio.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (s *Server) postImport(c *gin.Context) {
	imported, err := folio.Import(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError{Code: "invalid_argument", Message: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// the imported ledger inherits the running ledger's snapshot sink
	// and replaces it wholesale, last write wins
	imported.SetPersister(s.ledger.Persister())
	s.ledger = imported
	if p := imported.Persister(); p != nil {
		if err := p.Persist(imported); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": imported.Len()})
}
