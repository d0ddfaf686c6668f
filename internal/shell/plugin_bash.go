package shell

// BashPlugin is the bash variant of ZshPlugin.
const BashPlugin = `# worklog shell plugin, generated by 'worklog shell install bash'. Do not edit.
# Source this file from your ~/.bashrc:
#   source ~/.config/jira-worklogger/worklog.plugin.bash

command -v worklog >/dev/null 2>&1 && source <(worklog completion bash)

_worklog_timer_file="${XDG_DATA_HOME:-$HOME/.local/share}/jira-worklogger/timer.json"

worklog_prompt() {
  [[ -f "$_worklog_timer_file" ]] || return
  local keys
  keys=$(awk '/"issue_keys"/{f=1} f{while(match($0,/[A-Z][A-Z0-9_]*-[0-9]+/)){printf "%s%s",s,substr($0,RSTART,RLENGTH);s=",";$0=substr($0,RSTART+RLENGTH)}} f&&/\]/{exit}' "$_worklog_timer_file")
  [[ -n "$keys" ]] && printf '⏱ %s ' "$keys"
}
`
