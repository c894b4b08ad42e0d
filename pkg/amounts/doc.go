// Package amounts converts channel balances between the wei-denominated
// 256-bit integers carried in states and human-readable decimal ETH values.
package amounts
