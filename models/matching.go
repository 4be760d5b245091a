package models

/************************************************
/**** MARK: PLAN SLOTS ****/
/************************************************/
const PLAN_SLOT_1 = "plan_1"
const PLAN_SLOT_2 = "plan_2"
const PLAN_SLOT_3 = "plan_3"

// MatchPlan devolve o primeiro slot (plan_1, plan_2, plan_3) cujo código é aceito por granted.
// É o único ponto do sistema que decide se um produto casa com um plano.
func MatchPlan(p Product, granted func(code string) bool) (string, bool) {
	for _, s := range p.slots() {
		if s.code != "" && granted(s.code) {
			return s.name, true
		}
	}
	return "", false
}

// ProductMatchesPlan reports which slot of p declares planCode.
func ProductMatchesPlan(p Product, planCode string) (string, bool) {
	if planCode == "" {
		return "", false
	}
	return MatchPlan(p, func(code string) bool { return code == planCode })
}
