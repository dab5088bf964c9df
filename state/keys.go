package state

import (
	"encoding/hex"
	"fmt"
)

// Key layout of the lottery state inside the key-value store. Every record is
// RLP encoded; asset symbols are canonical (uppercase) before they reach this
// layer.
const (
	keyRegistry      = "lottery/registry"
	keyRoundFmt      = "lottery/round/%s/%d"
	keyRoundCountFmt = "lottery/rounds/%s"
	keyPlayerFmt     = "lottery/player/%s/%s"
	keyRequestFmt    = "lottery/request/%s"
	keyReqRoundFmt   = "lottery/reqround/%s/%d"
	keyVaultFmt      = "lottery/vault/%s"
)

func roundKey(asset string, id uint64) []byte {
	return []byte(fmt.Sprintf(keyRoundFmt, asset, id))
}

func roundCountKey(asset string) []byte {
	return []byte(fmt.Sprintf(keyRoundCountFmt, asset))
}

func playerKey(asset string, player [20]byte) []byte {
	return []byte(fmt.Sprintf(keyPlayerFmt, asset, hex.EncodeToString(player[:])))
}

func requestKey(id string) []byte {
	return []byte(fmt.Sprintf(keyRequestFmt, id))
}

func requestRoundKey(asset string, roundID uint64) []byte {
	return []byte(fmt.Sprintf(keyReqRoundFmt, asset, roundID))
}

func vaultKey(asset string) []byte {
	return []byte(fmt.Sprintf(keyVaultFmt, asset))
}
