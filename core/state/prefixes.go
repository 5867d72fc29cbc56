package state

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	accountPrefix   = []byte("acct:")
	tokenPrefix     = []byte("nft:token:")
	tokenCounterKey = ethcrypto.Keccak256([]byte("nft:counter"))
	operatorPrefix  = []byte("nft:operator:")
	listingPrefix   = []byte("market:listing:")
	proceedsPrefix  = []byte("market:proceeds:")
)

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

func tokenKey(unit uint64) []byte {
	buf := make([]byte, len(tokenPrefix)+8)
	copy(buf, tokenPrefix)
	binary.BigEndian.PutUint64(buf[len(tokenPrefix):], unit)
	return ethcrypto.Keccak256(buf)
}

func operatorKey(owner, operator [20]byte) []byte {
	buf := make([]byte, len(operatorPrefix)+len(owner)+1+len(operator))
	copy(buf, operatorPrefix)
	copy(buf[len(operatorPrefix):], owner[:])
	buf[len(operatorPrefix)+len(owner)] = ':'
	copy(buf[len(operatorPrefix)+len(owner)+1:], operator[:])
	return ethcrypto.Keccak256(buf)
}

func listingKey(collection [20]byte, unit uint64) []byte {
	buf := make([]byte, len(listingPrefix)+len(collection)+1+8)
	copy(buf, listingPrefix)
	copy(buf[len(listingPrefix):], collection[:])
	buf[len(listingPrefix)+len(collection)] = ':'
	binary.BigEndian.PutUint64(buf[len(listingPrefix)+len(collection)+1:], unit)
	return ethcrypto.Keccak256(buf)
}

func proceedsKey(addr [20]byte) []byte {
	buf := make([]byte, len(proceedsPrefix)+len(addr))
	copy(buf, proceedsPrefix)
	copy(buf[len(proceedsPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}
