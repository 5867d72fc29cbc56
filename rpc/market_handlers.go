package rpc

import (
	"net/http"
)

type marketListParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	Unit       uint64 `json:"unit"`
	Price      string `json:"price"`
}

type marketCancelParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	Unit       uint64 `json:"unit"`
}

type marketUpdateParams struct {
	Caller     string `json:"caller"`
	Collection string `json:"collection"`
	Unit       uint64 `json:"unit"`
	NewPrice   string `json:"newPrice"`
}

type marketBuyParams struct {
	Buyer      string `json:"buyer"`
	Collection string `json:"collection"`
	Unit       uint64 `json:"unit"`
	Payment    string `json:"payment"`
}

type marketCallerParams struct {
	Caller string `json:"caller"`
}

type marketUnitParams struct {
	Collection string `json:"collection"`
	Unit       uint64 `json:"unit"`
}

type marketAddressParams struct {
	Address string `json:"address"`
}

type marketFundParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type listingResult struct {
	Price  string `json:"price"`
	Seller string `json:"seller,omitempty"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type marketInfoResult struct {
	MarketAddress     string `json:"marketAddress"`
	CollectionAddress string `json:"collectionAddress"`
}

func (s *Server) handleMarketList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketListParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress("collection", params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parseAmount("price", params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketList(caller, collection, params.Unit, price); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"listed": true})
}

func (s *Server) handleMarketCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketCancelParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress("collection", params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketCancel(caller, collection, params.Unit); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"canceled": true})
}

func (s *Server) handleMarketUpdate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketUpdateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress("collection", params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	newPrice, err := parseAmount("newPrice", params.NewPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketUpdate(caller, collection, params.Unit, newPrice); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"listed": true})
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketBuyParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseAddress("buyer", params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress("collection", params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := parseAmount("payment", params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarketBuy(buyer, collection, params.Unit, payment); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"bought": true})
}

func (s *Server) handleMarketWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketCallerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := s.node.MarketWithdraw(caller)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: amount.String()})
}

func (s *Server) handleMarketGetListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketUnitParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	collection, err := parseAddress("collection", params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.MarketGetListing(collection, params.Unit)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	result := listingResult{Price: listing.PriceOrZero().String()}
	if listing.Active() {
		result.Seller = addrToString(listing.Seller)
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleMarketGetProceeds(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketAddressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	proceeds, err := s.node.MarketGetProceeds(addr)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: proceeds.String()})
}

func (s *Server) handleMarketGetBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketAddressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := s.node.GetAccount(addr[:])
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceResult{
		Address: params.Address,
		Balance: account.Balance.String(),
		Nonce:   account.Nonce,
	})
}

func (s *Server) handleMarketRecentEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, s.node.RecentEvents())
}

func (s *Server) handleMarketFund(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketFundParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.FaucetFund(addr, amount); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"funded": true})
}

func (s *Server) handleMarketInfo(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, marketInfoResult{
		MarketAddress:     addrToString(s.node.MarketAddress()),
		CollectionAddress: addrToString(s.node.CollectionAddress()),
	})
}
