package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cryptocoffee/core"
	"cryptocoffee/crypto"
	"cryptocoffee/native/coffee"
	"cryptocoffee/observability/logging"
)

// signedEnvelope is the decoded [payload, signature] pair of a mutating call.
type signedEnvelope struct {
	payload   []byte
	signature []byte
}

type callerPayload struct {
	Caller string `json:"caller"`
	Nonce  uint64 `json:"nonce"`
}

// decodeSigned authenticates req and unmarshals its payload into dst. The
// returned caller is the verified signer.
func (s *Server) decodeSigned(req *RPCRequest, dst interface{}) ([20]byte, uint64, *RPCError) {
	var caller [20]byte
	if len(req.Params) != 2 {
		return caller, 0, invalidParams("expected [payload, signature]")
	}
	var sigHex string
	if err := json.Unmarshal(req.Params[1], &sigHex); err != nil {
		return caller, 0, invalidParams("signature must be a hex string")
	}
	env := signedEnvelope{payload: []byte(req.Params[0])}
	sig, err := crypto.DecodeSignature(sigHex)
	if err != nil {
		return caller, 0, unauthorized(err)
	}
	env.signature = sig

	var head callerPayload
	if err := json.Unmarshal(env.payload, &head); err != nil {
		return caller, 0, invalidParams("invalid payload: %v", err)
	}
	caller, err = crypto.ParseAddress(head.Caller)
	if err != nil {
		return caller, 0, invalidParams("invalid caller: %v", err)
	}
	if err := crypto.VerifyCaller(s.node.ChainID(), req.Method, env.payload, env.signature, caller); err != nil {
		s.logger.Warn("signature rejected",
			"method", req.Method,
			logging.MaskField("signature", sigHex),
			"error", err)
		return caller, 0, unauthorized(err)
	}
	if err := json.Unmarshal(env.payload, dst); err != nil {
		return caller, 0, invalidParams("invalid payload: %v", err)
	}
	return caller, head.Nonce, nil
}

func unauthorized(err error) *RPCError {
	return &RPCError{Code: codeUnauthorized, Message: err.Error(), status: http.StatusUnauthorized}
}

// ledgerError maps a node failure onto the JSON-RPC error object, carrying
// the stable code in data.
func ledgerError(err error) *RPCError {
	code := core.ErrorCode(err)
	switch {
	case code == "":
		return &RPCError{Code: codeServerError, Message: "internal error", status: http.StatusInternalServerError}
	case errors.Is(err, coffee.ErrUnauthorized):
		return &RPCError{Code: codeUnauthorized, Message: err.Error(), Data: map[string]string{"code": code}, status: http.StatusForbidden}
	case errors.Is(err, core.ErrInvalidNonce):
		return &RPCError{Code: codeServerError, Message: err.Error(), Data: map[string]string{"code": code}, status: http.StatusConflict}
	default:
		return &RPCError{Code: codeServerError, Message: err.Error(), Data: map[string]string{"code": code}, status: http.StatusBadRequest}
	}
}

func parseAddressParam(field, value string) ([20]byte, *RPCError) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return addr, invalidParams("invalid %s: %v", field, err)
	}
	return addr, nil
}

func decodeSingle(req *RPCRequest, dst interface{}) *RPCError {
	if len(req.Params) != 1 {
		return invalidParams("expected exactly one parameter")
	}
	if err := json.Unmarshal(req.Params[0], dst); err != nil {
		return invalidParams("invalid parameter: %v", err)
	}
	return nil
}

func (s *Server) logMutation(ctx context.Context, method string, caller [20]byte, err error) {
	if err != nil {
		s.logger.Warn("ledger operation rejected",
			"method", method,
			"requestId", requestIDFrom(ctx),
			"caller", crypto.FormatAddress(caller),
			"code", core.ErrorCode(err),
			"error", err)
		return
	}
	s.logger.Info("ledger operation applied",
		"method", method,
		"requestId", requestIDFrom(ctx),
		"caller", crypto.FormatAddress(caller))
}

func (s *Server) handleChainInfo(_ context.Context, _ *RPCRequest) (interface{}, *RPCError) {
	return &ChainInfoResult{ChainID: s.node.ChainID(), DiscountDeposit: s.node.DiscountDeposit()}, nil
}

func (s *Server) handleInitializePlatform(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params InitializePlatformParams
	caller, nonce, rpcErr := s.decodeSigned(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	dest, rpcErr := parseAddressParam("feeDestination", params.FeeDestination)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cfg, err := s.node.InitializePlatform(caller, nonce, dest, params.FeePercentage)
	s.logMutation(ctx, req.Method, caller, err)
	if err != nil {
		return nil, ledgerError(err)
	}
	return platformResult(cfg), nil
}

func (s *Server) handleUpdateFee(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params UpdateFeeParams
	caller, nonce, rpcErr := s.decodeSigned(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cfg, err := s.node.UpdateFee(caller, nonce, params.FeePercentage)
	s.logMutation(ctx, req.Method, caller, err)
	if err != nil {
		return nil, ledgerError(err)
	}
	return platformResult(cfg), nil
}

func (s *Server) handleUpdateFeeDestination(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params UpdateFeeDestinationParams
	caller, nonce, rpcErr := s.decodeSigned(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	dest, rpcErr := parseAddressParam("feeDestination", params.FeeDestination)
	if rpcErr != nil {
		return nil, rpcErr
	}
	cfg, err := s.node.UpdateFeeDestination(caller, nonce, dest)
	s.logMutation(ctx, req.Method, caller, err)
	if err != nil {
		return nil, ledgerError(err)
	}
	return platformResult(cfg), nil
}

func (s *Server) handleAddCreatorDiscount(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params CreatorDiscountParams
	caller, nonce, rpcErr := s.decodeSigned(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddressParam("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	discount, err := s.node.AddCreatorDiscount(caller, nonce, creator, params.FeePercentage)
	s.logMutation(ctx, req.Method, caller, err)
	if err != nil {
		return nil, ledgerError(err)
	}
	return discountResult(discount), nil
}

func (s *Server) handleUpdateCreatorDiscount(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params CreatorDiscountParams
	caller, nonce, rpcErr := s.decodeSigned(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddressParam("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	discount, err := s.node.UpdateCreatorDiscount(caller, nonce, creator, params.FeePercentage)
	s.logMutation(ctx, req.Method, caller, err)
	if err != nil {
		return nil, ledgerError(err)
	}
	return discountResult(discount), nil
}

func (s *Server) handleRemoveCreatorDiscount(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params RemoveCreatorDiscountParams
	caller, nonce, rpcErr := s.decodeSigned(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddressParam("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	discount, err := s.node.RemoveCreatorDiscount(caller, nonce, creator)
	s.logMutation(ctx, req.Method, caller, err)
	if err != nil {
		return nil, ledgerError(err)
	}
	return discountResult(discount), nil
}

func (s *Server) handleBuy(ctx context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params BuyParams
	caller, nonce, rpcErr := s.decodeSigned(req, &params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddressParam("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	dest, rpcErr := parseAddressParam("feeDestination", params.FeeDestination)
	if rpcErr != nil {
		return nil, rpcErr
	}
	buy := coffee.BuyRequest{
		Contributor:    caller,
		Creator:        creator,
		FeeDestination: dest,
		Units:          params.Units,
		UnitPrice:      params.UnitPrice,
		Nonce:          nonce,
	}
	if ref := strings.TrimSpace(params.DiscountRef); ref != "" {
		parsed, err := decodeHash(ref)
		if err != nil {
			return nil, invalidParams("invalid discountRef: %v", err)
		}
		buy.DiscountRef = &parsed
	}
	receipt, err := s.node.BuyCoffee(buy)
	s.logMutation(ctx, req.Method, caller, err)
	if err != nil {
		return nil, ledgerError(err)
	}
	return receiptResult(receipt), nil
}

func (s *Server) handleQuote(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var params QuoteParams
	if rpcErr := decodeSingle(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddressParam("creator", params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	quote, err := s.node.QuoteCoffee(creator, params.Units, params.UnitPrice)
	if err != nil {
		return nil, ledgerError(err)
	}
	return quoteResult(quote), nil
}

func (s *Server) handleGetPlatform(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	if len(req.Params) != 0 {
		return nil, invalidParams("coffee_getPlatform takes no parameters")
	}
	cfg, err := s.node.Platform()
	if err != nil {
		return nil, ledgerError(err)
	}
	return platformResult(cfg), nil
}

func (s *Server) handleGetCreatorDiscount(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var creatorStr string
	if rpcErr := decodeSingle(req, &creatorStr); rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddressParam("creator", creatorStr)
	if rpcErr != nil {
		return nil, rpcErr
	}
	discount, found, err := s.node.CreatorDiscount(creator)
	if err != nil {
		return nil, ledgerError(err)
	}
	if !found {
		return nil, ledgerError(coffee.ErrDiscountNotFound)
	}
	return discountResult(discount), nil
}

func (s *Server) handleGetAccount(_ context.Context, req *RPCRequest) (interface{}, *RPCError) {
	var addrStr string
	if rpcErr := decodeSingle(req, &addrStr); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam("address", addrStr)
	if rpcErr != nil {
		return nil, rpcErr
	}
	acc, err := s.node.Account(addr)
	if err != nil {
		return nil, ledgerError(err)
	}
	return accountResult(addr, acc), nil
}

func decodeHash(input string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimPrefix(input, "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, err
	}
	if len(raw) != len(out) {
		return out, fmt.Errorf("expected %d bytes, got %d", len(out), len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
