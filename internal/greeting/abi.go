package greeting

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABI covers the parts of the greeting contract this client uses.
const contractABI = `[
	{"type":"function","name":"greeting","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"totalCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"userGreetingCounter","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"premium","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"setGreeting","stateMutability":"payable","inputs":[{"name":"_newGreeting","type":"string"}],"outputs":[]},
	{"type":"event","name":"GreetingChange","anonymous":false,"inputs":[
		{"name":"greetingSetter","type":"address","indexed":true},
		{"name":"newGreeting","type":"string","indexed":false},
		{"name":"premium","type":"bool","indexed":false},
		{"name":"value","type":"uint256","indexed":false}
	]}
]`

const eventGreetingChange = "GreetingChange"

var parsedABI = mustParseABI(contractABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("invalid greeting ABI: " + err.Error())
	}
	return parsed
}

// SigGreetingChange is topic 0 of GreetingChange logs.
var SigGreetingChange = parsedABI.Events[eventGreetingChange].ID
