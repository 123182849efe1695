package analytics

import (
	"sort"

	"github.com/tripledger/tripledger/internal/trips"
)

// Balance is what one participant paid against what they owe.
type Balance struct {
	ParticipantID int64  `json:"participantId"`
	Name          string `json:"name"`
	Paid          Minor  `json:"paid"`
	Owed          Minor  `json:"owed"`
}

// Net is positive when the participant is owed money.
func (b Balance) Net() Minor {
	return b.Paid - b.Owed
}

// Balances splits every purchase evenly between its sharers. When an amount does not divide
// evenly the leftover minor units go to the sharers listed first. The result follows the
// order of participants; payers or sharers missing from it are appended by id.
func Balances(participants []trips.Participant, purchases []trips.Purchase, code string) []Balance {
	index := make(map[int64]int, len(participants))
	out := make([]Balance, 0, len(participants))
	for _, p := range participants {
		index[p.ID] = len(out)
		out = append(out, Balance{ParticipantID: p.ID, Name: p.Name})
	}
	var unknown []int64
	at := func(id int64) *Balance {
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, Balance{ParticipantID: id})
			unknown = append(unknown, id)
		}
		return &out[i]
	}

	for _, p := range purchases {
		amount := ToMinor(p.Amount, code)
		at(p.PayerID).Paid += amount
		sharers := p.SharedWith
		if len(sharers) == 0 {
			sharers = []int64{p.PayerID}
		}
		for i, share := range splitShares(amount, len(sharers)) {
			at(sharers[i]).Owed += share
		}
	}

	if len(unknown) > 1 {
		known := len(out) - len(unknown)
		tail := out[known:]
		sort.Slice(tail, func(a, b int) bool { return tail[a].ParticipantID < tail[b].ParticipantID })
	}
	return out
}

// splitShares divides amount into n shares that differ by at most one minor unit and sum
// to amount. Earlier shares take the leftover units; a negative amount is split by magnitude.
func splitShares(amount Minor, n int) []Minor {
	sign := Minor(1)
	if amount < 0 {
		sign, amount = -1, -amount
	}
	base, rem := amount/Minor(n), amount%Minor(n)
	out := make([]Minor, n)
	for i := range out {
		out[i] = base
		if Minor(i) < rem {
			out[i]++
		}
		out[i] *= sign
	}
	return out
}

// Transfer settles part of a debt.
type Transfer struct {
	FromID int64 `json:"fromId"`
	ToID   int64 `json:"toId"`
	Amount Minor `json:"amount"`
}

// Settle proposes transfers that bring every balance to zero. The largest debtor pays the
// largest creditor first; ties go to the lower participant id.
func Settle(balances []Balance) []Transfer {
	type entry struct {
		id  int64
		amt Minor
	}
	var debtors, creditors []entry
	for _, b := range balances {
		switch net := b.Net(); {
		case net < 0:
			debtors = append(debtors, entry{b.ParticipantID, -net})
		case net > 0:
			creditors = append(creditors, entry{b.ParticipantID, net})
		}
	}
	order := func(list []entry) {
		sort.Slice(list, func(a, b int) bool {
			if list[a].amt != list[b].amt {
				return list[a].amt > list[b].amt
			}
			return list[a].id < list[b].id
		})
	}
	order(debtors)
	order(creditors)

	var out []Transfer
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amt := min(debtors[i].amt, creditors[j].amt)
		out = append(out, Transfer{FromID: debtors[i].id, ToID: creditors[j].id, Amount: amt})
		debtors[i].amt -= amt
		creditors[j].amt -= amt
		if debtors[i].amt == 0 {
			i++
		}
		if creditors[j].amt == 0 {
			j++
		}
	}
	return out
}
