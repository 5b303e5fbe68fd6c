package state

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	assetPrefix    = []byte("asset:")
	positionPrefix = []byte("position:")
	paramPrefix    = []byte("param:")
	balancePrefix  = []byte("balance:")

	assetListKey     = ethcrypto.Keccak256([]byte("asset-list"))
	positionListKey  = ethcrypto.Keccak256([]byte("position-list"))
	counterMintedKey = ethcrypto.Keccak256([]byte("counter-total-minted"))
	sequenceKey      = ethcrypto.Keccak256([]byte("position-sequence"))
	ownerKey         = ethcrypto.Keccak256([]byte("ledger-owner"))
)

func assetKey(id [20]byte) []byte {
	buf := make([]byte, len(assetPrefix)+len(id))
	copy(buf, assetPrefix)
	copy(buf[len(assetPrefix):], id[:])
	return ethcrypto.Keccak256(buf)
}

func positionKey(id [32]byte) []byte {
	buf := make([]byte, len(positionPrefix)+len(id))
	copy(buf, positionPrefix)
	copy(buf[len(positionPrefix):], id[:])
	return ethcrypto.Keccak256(buf)
}

func paramKey(name string) []byte {
	buf := make([]byte, len(paramPrefix)+len(name))
	copy(buf, paramPrefix)
	copy(buf[len(paramPrefix):], name)
	return ethcrypto.Keccak256(buf)
}

func balanceKey(addr [20]byte, asset [20]byte) []byte {
	buf := make([]byte, len(balancePrefix)+len(asset)+1+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], asset[:])
	buf[len(balancePrefix)+len(asset)] = ':'
	copy(buf[len(balancePrefix)+len(asset)+1:], addr[:])
	return ethcrypto.Keccak256(buf)
}
