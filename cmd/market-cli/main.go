package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("MARKET_RPC_TOKEN")

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "info":
		runQuery("market_info", map[string]any{})
	case "balance":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		runQuery("market_getBalance", map[string]any{"address": args[1]})
	case "listing":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a collection address and a unit id.")
			printUsage()
			return
		}
		runQuery("market_getListing", map[string]any{"collection": args[1], "unit": mustUint(args[2])})
	case "proceeds":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		runQuery("market_getProceeds", map[string]any{"address": args[1]})
	case "events":
		runQuery("market_recentEvents", nil)
	case "mint-and-list":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a seller address and a price.")
			printUsage()
			return
		}
		mintAndList(args[1], args[2])
	case "buy":
		if len(args) < 5 {
			fmt.Println("Error: Please provide buyer, collection, unit, and payment.")
			printUsage()
			return
		}
		runQuery("market_buy", map[string]any{
			"buyer":      args[1],
			"collection": args[2],
			"unit":       mustUint(args[3]),
			"payment":    args[4],
		})
	case "cancel":
		if len(args) < 4 {
			fmt.Println("Error: Please provide caller, collection, and unit.")
			printUsage()
			return
		}
		runQuery("market_cancel", map[string]any{"caller": args[1], "collection": args[2], "unit": mustUint(args[3])})
	case "withdraw":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an address.")
			printUsage()
			return
		}
		runQuery("market_withdraw", map[string]any{"caller": args[1]})
	case "fund":
		if len(args) < 3 {
			fmt.Println("Error: Please provide an address and an amount.")
			printUsage()
			return
		}
		runQuery("market_fund", map[string]any{"address": args[1], "amount": args[2]})
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

// mintAndList mirrors the canonical onboarding flow: mint a unit to the
// seller, approve the marketplace, and list at the given price.
func mintAndList(seller, price string) {
	info := struct {
		MarketAddress     string `json:"marketAddress"`
		CollectionAddress string `json:"collectionAddress"`
	}{}
	if err := rpcCall("market_info", map[string]any{}, &info); err != nil {
		fatal(err)
	}

	minted := struct {
		Unit uint64 `json:"unit"`
	}{}
	fmt.Println("Minting...")
	if err := rpcCall("nft_mint", map[string]any{"caller": seller}, &minted); err != nil {
		fatal(err)
	}

	fmt.Println("Approving marketplace...")
	if err := rpcCall("nft_approve", map[string]any{
		"caller":   seller,
		"operator": info.MarketAddress,
		"unit":     minted.Unit,
	}, nil); err != nil {
		fatal(err)
	}

	fmt.Println("Listing...")
	if err := rpcCall("market_list", map[string]any{
		"caller":     seller,
		"collection": info.CollectionAddress,
		"unit":       minted.Unit,
		"price":      price,
	}, nil); err != nil {
		fatal(err)
	}
	fmt.Printf("Listed unit %d at price %s\n", minted.Unit, price)
}

func runQuery(method string, params map[string]any) {
	var result json.RawMessage
	if err := rpcCall(method, params, &result); err != nil {
		fatal(err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(pretty.String())
}

type rpcErrorPayload struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func rpcCall(method string, params map[string]any, out interface{}) error {
	paramList := []any{}
	if params != nil {
		paramList = append(paramList, params)
	}
	payload, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  paramList,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if rpcAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+rpcAuthToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	envelope := struct {
		Result json.RawMessage  `json:"result"`
		Error  *rpcErrorPayload `json:"error"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		if len(envelope.Error.Data) > 0 {
			return fmt.Errorf("%s (%d): %s", envelope.Error.Message, envelope.Error.Code, envelope.Error.Data)
		}
		return fmt.Errorf("%s (%d)", envelope.Error.Message, envelope.Error.Code)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

func applyGlobalFlags(args []string) ([]string, error) {
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--rpc requires a URL")
			}
			i++
			rpcEndpoint = args[i]
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		default:
			remaining = append(remaining, arg)
		}
	}
	if rpcEndpoint == "" {
		return nil, fmt.Errorf("rpc endpoint must not be empty")
	}
	return remaining, nil
}

func defaultRPCEndpoint() string {
	if fromEnv := strings.TrimSpace(os.Getenv("RPC_URL")); fromEnv != "" {
		return fromEnv
	}
	return "http://localhost:8545"
}

func mustUint(value string) uint64 {
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		fatal(fmt.Errorf("invalid unit id %q: %w", value, err))
	}
	return parsed
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("Usage: market-cli [--rpc <url>] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  info                                    - Shows marketplace and collection info")
	fmt.Println("  balance <address>                       - Checks the balance of an address")
	fmt.Println("  listing <collection> <unit>             - Shows the listing for a unit")
	fmt.Println("  proceeds <address>                      - Shows the pending proceeds of an address")
	fmt.Println("  events                                  - Shows recent marketplace events")
	fmt.Println("  mint-and-list <seller> <price>          - Mints a unit, approves the market, and lists it")
	fmt.Println("  buy <buyer> <collection> <unit> <payment> - Buys a listed unit")
	fmt.Println("  cancel <caller> <collection> <unit>     - Cancels a listing")
	fmt.Println("  withdraw <address>                      - Withdraws pending proceeds")
	fmt.Println("  fund <address> <amount>                 - Funds an address")
}
