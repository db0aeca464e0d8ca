package streak

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// streakABI is the deployed contract's interface
const streakABI = `[
	{"inputs":[],"name":"post","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"stateMutability":"nonpayable","type":"constructor"},
	{"anonymous":false,"inputs":[
		{"indexed":false,"internalType":"address","name":"user","type":"address"},
		{"indexed":false,"internalType":"uint256","name":"streakCount","type":"uint256"}
	],"name":"PostLogged","type":"event"},
	{"inputs":[],"name":"currentTime","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getStreak","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"","type":"address"}],"name":"users","outputs":[
		{"internalType":"uint256","name":"lastValidPostTime","type":"uint256"},
		{"internalType":"uint256","name":"streakCount","type":"uint256"}
	],"stateMutability":"view","type":"function"}
]`

const (
	methodPost        = "post"
	methodGetStreak   = "getStreak"
	methodUsers       = "users"
	methodCurrentTime = "currentTime"
	eventPostLogged   = "PostLogged"
)

var contractABI = mustParseABI(streakABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("streak: invalid contract abi: " + err.Error())
	}
	return parsed
}

// postLogged mirrors the PostLogged event fields
type postLogged struct {
	User        common.Address
	StreakCount *big.Int
}
