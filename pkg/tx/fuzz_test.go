package tx

import (
	"encoding/json"
	"testing"
)

// FuzzTxUnmarshal tests that arbitrary JSON input does not panic
// when unmarshaled into a Transaction struct and run through validation.
func FuzzTxUnmarshal(f *testing.F) {
	f.Add([]byte(`{"version":1,"inputs":[{"height":1,"tx_index":0,"output_index":0}],"outputs":[{"amount":1000,"address":{"type":87,"hash":"0000000000000000000000000000000000000000"},"rule":{"type":1}}]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"inputs":null,"outputs":null}`))
	f.Add([]byte(`{"inputs":[{}],"outputs":[{"amount":0}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var transaction Transaction
		if err := json.Unmarshal(data, &transaction); err != nil {
			return
		}
		// If unmarshal succeeded, these must not panic.
		transaction.HashID()
		transaction.EncodedLen()
		ValidateConformity(&transaction)
		VerifyWitnessSignatures(&transaction)
	})
}
