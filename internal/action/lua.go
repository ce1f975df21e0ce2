package action

// Lua snippets executed server-side in Neovim. Each operation is a single
// nvim_exec_lua round trip: buffer lookup and mutation happen inside the
// editor so no intermediate state leaks between calls and cursor positions
// survive a reload.

// bufferStatusLua looks up a buffer by realpath and reports whether it is
// the current buffer and has unsaved changes.
const bufferStatusLua = `
local target = ...
local function canon(p)
  return vim.loop.fs_realpath(p) or p
end
target = canon(target)
for _, buf in ipairs(vim.api.nvim_list_bufs()) do
  if vim.api.nvim_buf_is_loaded(buf) then
    local name = vim.api.nvim_buf_get_name(buf)
    if name ~= '' and canon(name) == target then
      return {
        found = true,
        is_current = vim.api.nvim_get_current_buf() == buf,
        modified = vim.bo[buf].modified,
      }
    end
  end
end
return { found = false, is_current = false, modified = false }
`

// refreshBufferLua reloads a buffer from disk while preserving the cursor
// position of every window showing it. Success if the file is not open.
const refreshBufferLua = `
local target = ...
local function canon(p)
  return vim.loop.fs_realpath(p) or p
end
target = canon(target)
for _, buf in ipairs(vim.api.nvim_list_bufs()) do
  if vim.api.nvim_buf_is_loaded(buf) then
    local name = vim.api.nvim_buf_get_name(buf)
    if name ~= '' and canon(name) == target then
      local cursors = {}
      local is_current = vim.api.nvim_get_current_buf() == buf
      for _, win in ipairs(vim.api.nvim_list_wins()) do
        if vim.api.nvim_win_get_buf(win) == buf then
          cursors[win] = vim.api.nvim_win_get_cursor(win)
        end
      end
      vim.api.nvim_buf_call(buf, function()
        vim.cmd('checktime')
        vim.cmd('edit')
      end)
      for win, pos in pairs(cursors) do
        if vim.api.nvim_win_is_valid(win) then
          pcall(vim.api.nvim_win_set_cursor, win, pos)
        end
      end
      if is_current then
        vim.cmd('redraw')
      end
      return true
    end
  end
end
return true
`

// sendMessageLua raises a warning-level notification. The text travels as an
// exec_lua argument, so no string escaping is involved.
const sendMessageLua = `
local msg = ...
vim.notify(msg, vim.log.levels.WARN)
return true
`

// visualSelectionLua returns the active visual selection as whole lines, or
// an empty table when the editor is not in visual mode.
const visualSelectionLua = `
local mode = vim.api.nvim_get_mode().mode
if not (mode:find('^[vV]') or mode == '\22') then
  return {}
end
local buf = vim.api.nvim_get_current_buf()
local name = vim.api.nvim_buf_get_name(buf)
if name == '' then
  return {}
end
local s = vim.fn.line('v')
local e = vim.fn.line('.')
if s > e then
  s, e = e, s
end
local lines = vim.api.nvim_buf_get_lines(buf, s - 1, e, false)
if #lines == 0 then
  return {}
end
return {
  file_path = name,
  start_line = s,
  end_line = e,
  content = table.concat(lines, '\n'),
}
`
