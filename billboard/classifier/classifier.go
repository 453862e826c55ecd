// Package classifier decides, for a raw Bitcoin transaction and the
// indexer's current deed UTXO set, whether the transaction is UBB-relevant
// and extracts the pieces the state-transition function needs: the UBB
// OP_RETURN payload bytes (if any), the set of 600-satoshi deed outputs,
// and whether the transaction spends a tracked deed.
package classifier

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/MysticalGareth/UBB-sub000/billboard"
)

const deedValue = billboard.DeedValueSatoshis

var ubbMagic = [2]byte{0x13, 0x37}

// DeedOutput is a single 600-satoshi output discovered on a transaction.
type DeedOutput struct {
	Outpoint billboard.Outpoint
	Address  string // "unknown" when the script does not decode to an address.
}

// Classified is the result of classifying one transaction.
type Classified struct {
	// Relevant is false iff the transaction should be skipped entirely:
	// no UBB-magic OP_RETURN and no input spends a tracked deed.
	Relevant bool

	// Payload is the raw bytes of the UBB OP_RETURN chosen per §4.5 (nil
	// if there is none, or if ≥2 UBB OP_RETURNs forced transfer-only
	// treatment — MultiUBBOpReturn is set in that case).
	Payload []byte

	// MultiUBBOpReturn is true when the transaction carried two or more
	// OP_RETURNs with UBB magic, forcing transfer-only semantics
	// regardless of what either payload said.
	MultiUBBOpReturn bool

	// SpentDeed is the first tracked deed outpoint this transaction's
	// inputs spend, and whether one was found.
	SpentDeed    billboard.Outpoint
	HasSpentDeed bool

	// DeedOutputs holds every 600-satoshi non-OP_RETURN output, in
	// output order.
	DeedOutputs []DeedOutput
}

// Classify inspects tx against deedUTXOs (the snapshot's live deed set)
// and net (used to decode addresses from output scripts). Relevance and
// the candidate payload hinge on the transaction's first OP_RETURN output
// specifically, not on any OP_RETURN carrying UBB magic: a later OP_RETURN
// with valid magic never makes an otherwise-plain transaction relevant.
// The multi-UBB-OP_RETURN count, by contrast, is a scan of every output.
func Classify(tx *wire.MsgTx, deedUTXOs map[billboard.Outpoint]struct{}, net *chaincfg.Params) Classified {
	var deedOutputs []DeedOutput
	txid := tx.TxHash().String()

	var firstOpReturn []byte
	haveFirstOpReturn := false
	ubbCount := 0

	for vout, out := range tx.TxOut {
		if isOpReturn(out.PkScript) {
			data := opReturnData(out.PkScript)
			if !haveFirstOpReturn {
				firstOpReturn = data
				haveFirstOpReturn = true
			}
			if isUBBMagic(data) {
				ubbCount++
			}
			continue
		}
		if btcutil.Amount(out.Value) == btcutil.Amount(deedValue) {
			deedOutputs = append(deedOutputs, DeedOutput{
				Outpoint: billboard.Outpoint{TxID: txid, Vout: uint32(vout)},
				Address:  addressOrUnknown(out.PkScript, net),
			})
		}
	}

	firstHasMagic := haveFirstOpReturn && isUBBMagic(firstOpReturn)
	multiUBB := ubbCount >= 2

	var spentDeed billboard.Outpoint
	hasSpentDeed := false
	for _, in := range tx.TxIn {
		op := billboard.Outpoint{
			TxID: in.PreviousOutPoint.Hash.String(),
			Vout: in.PreviousOutPoint.Index,
		}
		if _, ok := deedUTXOs[op]; ok {
			spentDeed = op
			hasSpentDeed = true
			break
		}
	}

	var payload []byte
	if firstHasMagic && !multiUBB {
		payload = firstOpReturn
	}

	relevant := firstHasMagic || hasSpentDeed

	return Classified{
		Relevant:         relevant,
		Payload:          payload,
		MultiUBBOpReturn: multiUBB,
		SpentDeed:        spentDeed,
		HasSpentDeed:     hasSpentDeed,
		DeedOutputs:      deedOutputs,
	}
}

func isUBBMagic(data []byte) bool {
	return len(data) >= 2 && data[0] == ubbMagic[0] && data[1] == ubbMagic[1]
}

func isOpReturn(script []byte) bool {
	return len(script) > 0 && script[0] == txscript.OP_RETURN
}

// opReturnData extracts the single data push following OP_RETURN, the way
// a UBB OP_RETURN output is constructed: OP_RETURN <push opcode> <data>.
func opReturnData(script []byte) []byte {
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
		return nil
	}
	if !tokenizer.Next() {
		return nil
	}
	return tokenizer.Data()
}

func addressOrUnknown(script []byte, net *chaincfg.Params) string {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(script, net)
	if err != nil || len(addrs) == 0 {
		return "unknown"
	}
	var addr btcutil.Address = addrs[0]
	return addr.EncodeAddress()
}

// DeedUTXOSetFromOutpoints is a convenience constructor turning a slice of
// live deed outpoints (as stored in a Snapshot) into the set form Classify
// expects, avoiding a linear scan per transaction.
func DeedUTXOSetFromOutpoints(outpoints []billboard.Outpoint) map[billboard.Outpoint]struct{} {
	set := make(map[billboard.Outpoint]struct{}, len(outpoints))
	for _, op := range outpoints {
		set[op] = struct{}{}
	}
	return set
}
