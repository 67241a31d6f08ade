package roster

import "time"

// DatedString 记录一个取值以及首次/最近一次出现的时间。
type DatedString struct {
	Value     string    `json:"value"`
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// UpdateDatedStrings 把 value 记录到历史列表：与最后一项相同则只刷新 LastSeen，
// 否则追加新项。空值忽略。
func UpdateDatedStrings(set []DatedString, value string, now time.Time) []DatedString {
	if value == "" {
		return set
	}
	if n := len(set); n > 0 && set[n-1].Value == value {
		set[n-1].LastSeen = now
		return set
	}
	return append(set, DatedString{Value: value, FirstSeen: now, LastSeen: now})
}

// latest 返回列表最后一项的值。
func latest(set []DatedString) string {
	if len(set) == 0 {
		return ""
	}
	return set[len(set)-1].Value
}

// VisitorEntry 是一名玩家的历史身份信息。
type VisitorEntry struct {
	DisplayNames    []DatedString `json:"displayNames"`
	SteamIDs        []DatedString `json:"steamIds"`
	PlayfabIDs      []DatedString `json:"playfabIds"`
	UnityIDs        []DatedString `json:"unityIds"`
	IPAddresses     []DatedString `json:"ipAddresses"`
	FirstSeen       time.Time     `json:"firstSeen"`
	LastSeen        time.Time     `json:"lastSeen"`
	PermissionLevel uint          `json:"permissionLevel"`
}

// DisplayName 返回最近使用的名字。
func (e VisitorEntry) DisplayName() string {
	return latest(e.DisplayNames)
}

// SteamID 返回最近的 Steam ID。
func (e VisitorEntry) SteamID() string {
	return latest(e.SteamIDs)
}

// IPAddress 返回最近的 IP。
func (e VisitorEntry) IPAddress() string {
	return latest(e.IPAddresses)
}

func (e VisitorEntry) clone() VisitorEntry {
	e.DisplayNames = append([]DatedString(nil), e.DisplayNames...)
	e.SteamIDs = append([]DatedString(nil), e.SteamIDs...)
	e.PlayfabIDs = append([]DatedString(nil), e.PlayfabIDs...)
	e.UnityIDs = append([]DatedString(nil), e.UnityIDs...)
	e.IPAddresses = append([]DatedString(nil), e.IPAddresses...)
	return e
}

// merge 把一次加入时上报的身份合并进已有记录。
// 每个字段只取上报列表中最新的值做合并；权限等级以本地记录为准。
func (e VisitorEntry) merge(seen VisitorEntry, now time.Time) VisitorEntry {
	e.DisplayNames = UpdateDatedStrings(e.DisplayNames, latest(seen.DisplayNames), now)
	e.SteamIDs = UpdateDatedStrings(e.SteamIDs, latest(seen.SteamIDs), now)
	e.PlayfabIDs = UpdateDatedStrings(e.PlayfabIDs, latest(seen.PlayfabIDs), now)
	e.UnityIDs = UpdateDatedStrings(e.UnityIDs, latest(seen.UnityIDs), now)
	e.IPAddresses = UpdateDatedStrings(e.IPAddresses, latest(seen.IPAddresses), now)
	if e.FirstSeen.IsZero() {
		e.FirstSeen = now
		if !seen.FirstSeen.IsZero() && seen.FirstSeen.Before(now) {
			e.FirstSeen = seen.FirstSeen
		}
	}
	e.LastSeen = now
	return e
}

// Player 是 UI 展示用的一行快照。
type Player struct {
	ID              string
	DisplayName     string
	SteamID         string
	IPAddress       string
	PermissionLevel uint
	Connected       bool
	FirstSeen       time.Time
	LastSeen        time.Time
}

func toPlayer(id string, e VisitorEntry, connected bool) Player {
	return Player{
		ID:              id,
		DisplayName:     e.DisplayName(),
		SteamID:         e.SteamID(),
		IPAddress:       e.IPAddress(),
		PermissionLevel: e.PermissionLevel,
		Connected:       connected,
		FirstSeen:       e.FirstSeen,
		LastSeen:        e.LastSeen,
	}
}
