package server

import (
	"net/http"
	"strconv"
	"strings"

	"telecalc/internal/pricing"
	"telecalc/internal/proration"
)

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	anchor := s.cfg.AnchorDay
	if v := strings.TrimSpace(q.Get("anchor")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, proration.NewValidationError("anchor_day", v, proration.ErrInvalidAnchorDay, "expected an integer"))
			return
		}
		anchor = n
	}

	c, err := proration.ResolveCycle(q.Get("date"), anchor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.Calculations.WithLabelValues("cycle").Inc()
	writeJSON(w, http.StatusOK, c)
}

// prorateRequest shadows Request.Amount so a missing amount can be told
// apart from zero.
type prorateRequest struct {
	proration.Request
	Amount *float64 `json:"amount"`
	Lang   string   `json:"lang,omitempty"`
	View   string   `json:"view,omitempty"`
}

type prorateResponse struct {
	Result *proration.Result  `json:"result"`
	Text   string             `json:"text"`
	Lang   proration.Language `json:"lang"`
	View   proration.View     `json:"view"`
}

func (s *Server) handleProrate(w http.ResponseWriter, r *http.Request) {
	var req prorateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if req.Amount == nil {
		s.writeError(w, r, errAmountRequired())
		return
	}
	lang, err := proration.ParseLanguage(req.Lang)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := proration.ParseView(req.View)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	calc := req.Request
	calc.Amount = *req.Amount
	if calc.AnchorDay == 0 {
		calc.AnchorDay = s.cfg.AnchorDay
	}
	if calc.Gross && calc.VATRate == nil {
		rate := s.cfg.VATRate
		calc.VATRate = &rate
	}

	res, err := proration.Calculate(calc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	text, err := s.formatter.Format(res, res.MonthlyNet, lang, view)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.Calculations.WithLabelValues(calculationKind(calc)).Inc()
	writeJSON(w, http.StatusOK, prorateResponse{Result: res, Text: text, Lang: lang, View: view})
}

func errAmountRequired() error {
	return proration.NewValidationError("amount", nil, proration.ErrInvalidAmount, "amount is required")
}

func calculationKind(req proration.Request) string {
	switch {
	case req.Gross:
		return "prorate_gross"
	case req.Activation:
		return "prorate_activation"
	default:
		return "prorate"
	}
}

type pricingRequest struct {
	Amount          *float64 `json:"amount"`
	Basis           string   `json:"basis,omitempty"`
	DiscountPercent float64  `json:"discountPercent,omitempty"`
	VATRate         *float64 `json:"vatRate,omitempty"`
	Months          int      `json:"months,omitempty"`
	Lang            string   `json:"lang,omitempty"`
}

type pricingResponse struct {
	Quote *pricing.Quote     `json:"quote"`
	Text  string             `json:"text"`
	Lang  proration.Language `json:"lang"`
}

func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		s.writeError(w, r, errAmountRequired())
		return
	}

	lang, err := proration.ParseLanguage(req.Lang)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	in := pricing.Input{
		Amount:          *req.Amount,
		Basis:           pricing.Basis(req.Basis),
		DiscountPercent: req.DiscountPercent,
		VATRate:         s.cfg.VATRate,
		Months:          req.Months,
	}
	if req.VATRate != nil {
		in.VATRate = *req.VATRate
	}

	q, err := pricing.Calculate(in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	text, err := q.Format(lang)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.Calculations.WithLabelValues("pricing").Inc()
	writeJSON(w, http.StatusOK, pricingResponse{Quote: q, Text: text, Lang: lang})
}
