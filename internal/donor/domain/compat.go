package domain

import "fmt"

// donatesTo lists the recipient groups each donor group may give whole
// blood or red cells to, under the universal donor/recipient model.
var donatesTo = map[BloodGroup][]BloodGroup{
	ONeg:  {ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos},
	OPos:  {OPos, APos, BPos, ABPos},
	ANeg:  {ANeg, APos, ABNeg, ABPos},
	APos:  {APos, ABPos},
	BNeg:  {BNeg, BPos, ABNeg, ABPos},
	BPos:  {BPos, ABPos},
	ABNeg: {ABNeg, ABPos},
	ABPos: {ABPos},
}

// EligibleDonorGroups returns the donor groups that may legally donate
// to a recipient requiring the given group, in AllBloodGroups order.
// The lookup is pure; the only failure mode is an out-of-enum input.
func EligibleDonorGroups(required BloodGroup) ([]BloodGroup, error) {
	if !required.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBloodGroup, required)
	}
	eligible := make([]BloodGroup, 0, len(AllBloodGroups))
	for _, donor := range AllBloodGroups {
		for _, recipient := range donatesTo[donor] {
			if recipient == required {
				eligible = append(eligible, donor)
				break
			}
		}
	}
	return eligible, nil
}

// CanDonateTo reports whether a donor of group d may give to a
// recipient requiring group required.
func CanDonateTo(d, required BloodGroup) bool {
	for _, recipient := range donatesTo[d] {
		if recipient == required {
			return true
		}
	}
	return false
}
