// Package brokerage is the position, cost basis and commission ledger of a
// brokerage back office.
//
// Transactions are BUYs and SELLs of whole lots of a stock by a client,
// optionally through a broker. Each (client, stock, broker) triple is a
// Bucket, whose history is folded by an Inventory into a queue of open
// lots:
//   - a BUY opens a lot at its unit price;
//   - a SELL consumes open lots first-in first-out, or starting with the
//     BUY it references, and never more than are open.
//
// A Calculator turns the lots consumed by a SELL into its realized profit
// and commission, which are written back on the SELL. Positions summarize
// the open lots of a bucket and roll up per stock or per broker. The
// collections ledger nets the commissions of a client against the payments
// received.
//
// Everything is derived from the transaction history alone: a Book replays
// a bucket from its first transaction whenever the history changes, and
// serializes writes per bucket.
package brokerage
