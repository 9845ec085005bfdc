package evmhtlc

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// htlc3sABIJSON and erc20ABIJSON mirror the Python reference client's
// HTLC3S_ABI / ERC20_ABI definitions verbatim, parsed once at package
// init via go-ethereum's accounts/abi rather than hand-building
// selectors and argument encoders.
const htlc3sABIJSON = `[
	{"name":"create","type":"function","inputs":[
		{"name":"recipient","type":"address"},
		{"name":"token","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"H_user","type":"bytes32"},
		{"name":"H_lp1","type":"bytes32"},
		{"name":"H_lp2","type":"bytes32"},
		{"name":"timelock","type":"uint256"}
	],"outputs":[{"name":"htlcId","type":"bytes32"}]},
	{"name":"claim","type":"function","inputs":[
		{"name":"htlcId","type":"bytes32"},
		{"name":"S_user","type":"bytes32"},
		{"name":"S_lp1","type":"bytes32"},
		{"name":"S_lp2","type":"bytes32"}
	],"outputs":[]},
	{"name":"refund","type":"function","inputs":[
		{"name":"htlcId","type":"bytes32"}
	],"outputs":[]},
	{"name":"canClaim","type":"function","stateMutability":"view","inputs":[
		{"name":"htlcId","type":"bytes32"},
		{"name":"S_user","type":"bytes32"},
		{"name":"S_lp1","type":"bytes32"},
		{"name":"S_lp2","type":"bytes32"}
	],"outputs":[{"name":"","type":"bool"}]},
	{"name":"canRefund","type":"function","stateMutability":"view","inputs":[
		{"name":"htlcId","type":"bytes32"}
	],"outputs":[{"name":"","type":"bool"}]},
	{"name":"getHTLC","type":"function","stateMutability":"view","inputs":[
		{"name":"htlcId","type":"bytes32"}
	],"outputs":[
		{"name":"sender","type":"address"},
		{"name":"recipient","type":"address"},
		{"name":"token","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"H_user","type":"bytes32"},
		{"name":"H_lp1","type":"bytes32"},
		{"name":"H_lp2","type":"bytes32"},
		{"name":"timelock","type":"uint256"},
		{"name":"claimed","type":"bool"},
		{"name":"refunded","type":"bool"}
	]}
]`

const erc20ABIJSON = `[
	{"name":"approve","type":"function","inputs":[
		{"name":"spender","type":"address"},
		{"name":"amount","type":"uint256"}
	],"outputs":[{"name":"","type":"bool"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[
		{"name":"owner","type":"address"},
		{"name":"spender","type":"address"}
	],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	htlc3sABI abi.ABI
	erc20ABI  abi.ABI
)

func init() {
	var err error
	htlc3sABI, err = abi.JSON(strings.NewReader(htlc3sABIJSON))
	if err != nil {
		panic("evmhtlc: invalid embedded htlc3s ABI: " + err.Error())
	}
	erc20ABI, err = abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic("evmhtlc: invalid embedded erc20 ABI: " + err.Error())
	}
}
