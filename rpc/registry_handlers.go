package rpc

import (
	"net/http"
	"strconv"
)

type nftCallerParams struct {
	Caller string `json:"caller"`
}

type nftApproveParams struct {
	Caller   string `json:"caller"`
	Operator string `json:"operator,omitempty"`
	Unit     uint64 `json:"unit"`
}

type nftApprovalForAllParams struct {
	Caller   string `json:"caller"`
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

type nftTransferParams struct {
	Caller string `json:"caller"`
	From   string `json:"from"`
	To     string `json:"to"`
	Unit   uint64 `json:"unit"`
}

type nftUnitParams struct {
	Unit uint64 `json:"unit"`
}

type nftMintResult struct {
	Unit uint64 `json:"unit"`
}

type nftOwnerResult struct {
	Owner string `json:"owner"`
}

type nftURIResult struct {
	URI string `json:"uri"`
}

type nftCounterResult struct {
	Counter string `json:"counter"`
}

func (s *Server) handleNFTMint(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params nftCallerParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	unit, err := s.node.MintNFT(caller)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, nftMintResult{Unit: unit})
}

func (s *Server) handleNFTApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params nftApproveParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	// An omitted operator clears any outstanding unit approval.
	var operator [20]byte
	if params.Operator != "" {
		operator, err = parseAddress("operator", params.Operator)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	if err := s.node.NFTApprove(caller, operator, params.Unit); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"approved": true})
}

func (s *Server) handleNFTSetApprovalForAll(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params nftApprovalForAllParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	operator, err := parseAddress("operator", params.Operator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.NFTSetApprovalForAll(caller, operator, params.Approved); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleNFTTransferFrom(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params nftTransferParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseAddress("from", params.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	to, err := parseAddress("to", params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.NFTTransferFrom(caller, from, to, params.Unit); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"transferred": true})
}

func (s *Server) handleNFTOwnerOf(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params nftUnitParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := s.node.NFTOwnerOf(params.Unit)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, nftOwnerResult{Owner: addrToString(owner)})
}

func (s *Server) handleNFTTokenURI(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params nftUnitParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	uri, err := s.node.NFTTokenURI(params.Unit)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, nftURIResult{URI: uri})
}

func (s *Server) handleNFTGetCounter(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	counter, err := s.node.NFTGetCounter()
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, nftCounterResult{Counter: strconv.FormatUint(counter, 10)})
}
