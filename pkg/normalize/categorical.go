package normalize

import (
	"strings"

	"github.com/agentstation/racesync/pkg/races"
)

type statusRule struct {
	status   races.Status
	keywords []string
}

// Checked in order; "已截止" must not fall through to open.
var statusRules = []statusRule{
	{races.StatusCancelled, []string{"取消", "cancel"}},
	{races.StatusEnded, []string{"已结束", "结束", "ended", "finished"}},
	{races.StatusClosed, []string{"已截止", "截止", "已满", "名额已满", "closed", "full"}},
	{races.StatusOpen, []string{"报名中", "一键报名", "立即报名", "开放", "open"}},
	{races.StatusUnknown, []string{"未知", "unknown"}},
}

// Status maps an event status label to its enumerated form.
func Status(raw string) (races.Status, bool) {
	s := Fold(raw)
	if s == "" {
		return "", false
	}
	for _, rule := range statusRules {
		for _, kw := range rule.keywords {
			if strings.Contains(s, kw) {
				return rule.status, true
			}
		}
	}
	return "", false
}

// RegistrationStatus maps a variant registration label. Ended and
// cancelled events read as closed.
func RegistrationStatus(raw string) (races.RegistrationStatus, bool) {
	st, ok := Status(raw)
	if !ok {
		return "", false
	}
	switch st {
	case races.StatusOpen:
		return races.RegistrationOpen, true
	case races.StatusUnknown:
		return races.RegistrationUnknown, true
	default:
		return races.RegistrationClosed, true
	}
}

type levelRule struct {
	standard string
	aliases  []string
	priority int
}

var levelRules = []levelRule{
	{"世界田径白金标赛事", []string{"世界田联白金标", "白金标", "world athletics platinum label", "platinum label", "世界田径白金", "wa白金标"}, 200},
	{"世界田径金标赛事", []string{"世界田联金标", "金标", "world athletics gold label", "gold label", "国际金标", "世界田径金标", "wa金标"}, 190},
	{"世界田径银标赛事", []string{"世界田联银标", "银标", "world athletics silver label", "silver label", "国际银标", "世界田径银标", "wa银标"}, 180},
	{"世界田径铜标赛事", []string{"世界田联铜标", "铜标", "world athletics bronze label", "bronze label", "国际铜标", "世界田径铜标", "wa铜标"}, 170},
	{"UTMB认证", []string{"utmb", "utmb认证赛事", "utmb系列赛", "utmb积分赛", "utmb认证"}, 160},
	{"ITRA认证", []string{"itra", "itra认证赛事", "itra认证", "itra积分赛", "itra points"}, 150},
	{"A（A1）", []string{"a1类", "a1", "a1类赛事", "a(a1)类", "a(a1)", "a1级"}, 100},
	{"A（A2）", []string{"a2类", "a2", "a2类赛事", "a(a2)类", "a(a2)", "a2级"}, 95},
	{"A类", []string{"a类", "a类赛事", "a级", "a类认证"}, 90},
	{"AIMS认证", []string{"aims", "aims认证", "aims会员赛事"}, 85},
	{"B类", []string{"b类", "b类赛事", "b级", "b类认证"}, 80},
	{"C类（属地办赛）", []string{"c类", "c类赛事", "属地办赛", "c级", "c类认证", "属地赛"}, 70},
	{"中国田径协会认证", []string{"中国田径协会", "田协认证", "中田协", "caa认证", "中国田协认证"}, 60},
}

// Level maps a tier label to its standard name. Exact alias matches win;
// otherwise the highest-priority alias contained in the label is used.
// Unrecognized labels pass through cleaned.
func Level(raw string) (string, bool) {
	cleaned, ok := Text(raw)
	if !ok {
		return "", false
	}
	s := Fold(cleaned)
	best, bestPriority := "", -1
	for _, rule := range levelRules {
		if s == Fold(rule.standard) {
			return rule.standard, true
		}
		for _, alias := range rule.aliases {
			if s == alias {
				return rule.standard, true
			}
			if strings.Contains(s, alias) && rule.priority > bestPriority {
				best, bestPriority = rule.standard, rule.priority
			}
		}
	}
	if best != "" {
		return best, true
	}
	return cleaned, true
}

var typeRules = []struct {
	label    string
	keywords []string
}{
	{"铁人三项", []string{"铁三", "铁人三项", "triathlon"}},
	{"越野赛", []string{"越野", "山地", "山径", "trail"}},
	{"马拉松", []string{"马拉松", "marathon"}},
	{"游泳", []string{"游泳", "公开水域"}},
	{"自行车", []string{"自行车", "骑行"}},
	{"欢乐跑", []string{"欢乐跑", "迷你跑", "亲子跑"}},
	{"路跑", []string{"路跑", "健康跑"}},
}

// DetectType classifies an event from its name and description.
func DetectType(name, description string) (string, bool) {
	text := Fold(name + " " + description)
	for _, rule := range typeRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.label, true
			}
		}
	}
	return "", false
}
