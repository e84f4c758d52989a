// example_test.go: runnable documentation examples
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package xanthos_test

import (
	"fmt"
	"os"

	"github.com/agilira/xanthos"
)

func ExampleOlken() {
	est, err := xanthos.NewOlken(xanthos.Config{TTLAware: true})
	if err != nil {
		fmt.Println(err)
		return
	}

	// A tiny trace: key 1 is reused before it expires, key 2 is not.
	trace := []xanthos.Request{
		{Timestamp: 0, KeyHash: 1, ValueSize: 4096, EvictionTime: 100, Type: xanthos.RequestGet},
		{Timestamp: 1, KeyHash: 2, ValueSize: 4096, EvictionTime: 2, Type: xanthos.RequestGet},
		{Timestamp: 5, KeyHash: 1, ValueSize: 4096, EvictionTime: 100, Type: xanthos.RequestGet},
		{Timestamp: 10, KeyHash: 2, ValueSize: 4096, EvictionTime: 200, Type: xanthos.RequestGet},
	}
	if err := est.AddRequests(trace); err != nil {
		fmt.Println(err)
		return
	}

	mrc, err := est.MRCFixedBlock()
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := mrc.WriteCSV(os.Stdout); err != nil {
		fmt.Println(err)
	}
	// Output:
	// 0,1.000000
	// 33554432,0.750000
}

func ExampleSketchWSS() {
	wss, err := xanthos.NewSketchWSS(xanthos.Config{TTLAware: true}, xanthos.WSSModeFixed)
	if err != nil {
		fmt.Println(err)
		return
	}

	for k := uint64(1); k <= 3; k++ {
		_ = wss.AddRequest(xanthos.Request{
			Timestamp:    0,
			KeyHash:      xanthos.Murmur64Uint64(k),
			ValueSize:    4096,
			EvictionTime: 60,
			Type:         xanthos.RequestGet,
		})
	}

	live, _ := wss.WSS(0)
	expired, _ := wss.WSS(60)
	fmt.Println(live, expired)
	// Output: 12288 0
}
